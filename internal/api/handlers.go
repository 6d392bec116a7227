package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/logger"
	"github.com/zulandar/punchlist/internal/models"
	"github.com/zulandar/punchlist/internal/project"
	"github.com/zulandar/punchlist/internal/report"
	"github.com/zulandar/punchlist/internal/task"
	"github.com/zulandar/punchlist/internal/tracker"
)

const dateLayout = "2006-01-02"

type handler struct {
	tr        *tracker.Tracker
	log       *logger.Logger
	maxUpload int64
}

func (h *handler) me(c *gin.Context) {
	u, err := h.tr.CurrentUserProfile(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, newUserView(*u))
}

func (h *handler) listUsers(c *gin.Context) {
	role := models.Role(strings.ToLower(c.Query("role")))
	users, err := h.tr.ListUsers(c.Request.Context(), actorFrom(c), role)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, mapViews(users, newUserView))
}

func (h *handler) listProjects(c *gin.Context) {
	ps, err := h.tr.ListProjects(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, mapViews(ps, newProjectView))
}

func (h *handler) getProject(c *gin.Context) {
	id, err := parseID(c.Param("id"), "project id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	p, err := h.tr.GetProject(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, newProjectView(*p))
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ManagerID   uint   `json:"manager_id"`
	CustomerID  uint   `json:"customer_id"`
}

func (h *handler) createProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, apperr.Wrap(apperr.Validation, err, "invalid request body"))
		return
	}
	p, err := h.tr.CreateProject(c.Request.Context(), actorFrom(c), project.CreateOpts{
		Name:        req.Name,
		Description: req.Description,
		ManagerID:   req.ManagerID,
		CustomerID:  req.CustomerID,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, newProjectView(*p))
}

// createDefect accepts multipart fields project_id, title, description and
// any number of "files" parts.
func (h *handler) createDefect(c *gin.Context) {
	form, err := h.multipart(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	projectID, err := parseID(formValue(form, "project_id"), "project_id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	atts, closeAll, err := openAttachments(form.File["files"])
	defer closeAll()
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	d, err := h.tr.CreateDefect(c.Request.Context(), actorFrom(c), tracker.NewDefect{
		ProjectID:   projectID,
		Title:       formValue(form, "title"),
		Description: formValue(form, "description"),
		Attachments: atts,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, newDefectView(*d))
}

func (h *handler) listDefectsForManager(c *gin.Context) {
	ds, err := h.tr.ListDefectsForManager(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, mapViews(ds, newDefectView))
}

type assignRequest struct {
	AssigneeID uint   `json:"assignee_id"`
	DueDate    string `json:"due_date"`
}

func (h *handler) assignDefect(c *gin.Context) {
	id, err := parseID(c.Param("id"), "defect id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, apperr.Wrap(apperr.Validation, err, "invalid request body"))
		return
	}
	due, err := parseDate(req.DueDate, "due_date")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	t, err := h.tr.AssignDefect(c.Request.Context(), actorFrom(c), tracker.Assignment{
		DefectID:   id,
		AssigneeID: req.AssigneeID,
		DueDate:    due,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, newTaskView(*t))
}

func (h *handler) readHistory(c *gin.Context) {
	id, err := parseID(c.Param("id"), "defect id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	entries, err := h.tr.ReadHistory(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, mapViews(entries, newHistoryView))
}

func (h *handler) openFile(c *gin.Context) {
	id, err := parseID(c.Param("id"), "defect id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	fileID, err := parseID(c.Param("fileID"), "file id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	f, rc, err := h.tr.OpenFile(c.Request.Context(), actorFrom(c), id, fileID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, f.Size, "application/octet-stream", rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", f.FileName),
	})
}

type commentRequest struct {
	Text string `json:"text"`
}

func (h *handler) addComment(c *gin.Context) {
	id, err := parseID(c.Param("id"), "defect id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, apperr.Wrap(apperr.Validation, err, "invalid request body"))
		return
	}
	entry, err := h.tr.AddComment(c.Request.Context(), actorFrom(c), id, req.Text)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, newHistoryView(*entry))
}

// addCommentWithFile accepts multipart fields text and file.
func (h *handler) addCommentWithFile(c *gin.Context) {
	id, err := parseID(c.Param("id"), "defect id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	form, err := h.multipart(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	files := form.File["file"]
	if len(files) != 1 {
		respondError(c, h.log, apperr.New(apperr.Validation, "exactly one file is required"))
		return
	}
	atts, closeAll, err := openAttachments(files)
	defer closeAll()
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	entry, err := h.tr.AddCommentWithFile(c.Request.Context(), actorFrom(c), id, formValue(form, "text"), atts[0])
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, newHistoryView(*entry))
}

func (h *handler) listTasks(c *gin.Context) {
	var f task.ListFilters
	var err error
	if f.ProjectID, err = parseOptionalID(c.Query("project_id"), "project_id"); err != nil {
		respondError(c, h.log, err)
		return
	}
	if f.AssigneeID, err = parseOptionalID(c.Query("assignee_id"), "assignee_id"); err != nil {
		respondError(c, h.log, err)
		return
	}
	f.Status = c.Query("status")
	tasks, err := h.tr.ListTasks(c.Request.Context(), actorFrom(c), f)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, mapViews(tasks, newTaskView))
}

func (h *handler) getTask(c *gin.Context) {
	id, err := parseID(c.Param("id"), "task id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	t, err := h.tr.GetTask(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, newTaskView(*t))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *handler) changeTaskStatus(c *gin.Context) {
	id, err := parseID(c.Param("id"), "task id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, apperr.Wrap(apperr.Validation, err, "invalid request body"))
		return
	}
	t, err := h.tr.ChangeTaskStatus(c.Request.Context(), actorFrom(c), id, req.Status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, newTaskView(*t))
}

// reportQuery reads project_id, status, from and to.
func reportQuery(c *gin.Context) (uint, report.Filter, error) {
	var f report.Filter
	projectID, err := parseID(c.Query("project_id"), "project_id")
	if err != nil {
		return 0, f, err
	}
	f.Status = c.Query("status")
	if f.From, err = parseDate(c.Query("from"), "from"); err != nil {
		return 0, f, err
	}
	if f.To, err = parseDate(c.Query("to"), "to"); err != nil {
		return 0, f, err
	}
	return projectID, f, nil
}

func (h *handler) buildReport(c *gin.Context) {
	projectID, f, err := reportQuery(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	rep, err := h.tr.BuildReport(c.Request.Context(), actorFrom(c), projectID, f)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, rep)
}

func (h *handler) exportReport(c *gin.Context) {
	projectID, f, err := reportQuery(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	a, err := h.tr.ExportReport(c.Request.Context(), actorFrom(c), projectID, f, nil)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.FileName))
	c.Data(http.StatusOK, a.ContentType, a.Content)
}

func (h *handler) computeRatings(c *gin.Context) {
	r, err := h.tr.ComputeRatings(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, r)
}

// multipart parses a multipart body capped at the upload limit.
func (h *handler) multipart(c *gin.Context) (*multipart.Form, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.New(apperr.Validation, "upload exceeds %d MB", h.maxUpload>>20)
		}
		return nil, apperr.Wrap(apperr.Validation, err, "invalid multipart body")
	}
	return form, nil
}

// openAttachments opens every part. The returned func closes whatever
// was opened and is safe to call on error.
func openAttachments(parts []*multipart.FileHeader) ([]tracker.Attachment, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	atts := make([]tracker.Attachment, 0, len(parts))
	for _, fh := range parts {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, apperr.Wrap(apperr.Validation, err, "unreadable file %q", fh.Filename)
		}
		opened = append(opened, f)
		atts = append(atts, tracker.Attachment{Name: fh.Filename, Body: f})
	}
	return atts, closeAll, nil
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func parseID(s, field string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.New(apperr.Validation, "%s must be a positive integer", field)
	}
	return uint(id), nil
}

func parseOptionalID(s, field string) (uint, error) {
	if s == "" {
		return 0, nil
	}
	return parseID(s, field)
}

// parseDate reads an RFC 3339 timestamp, or a YYYY-MM-DD date as UTC
// midnight. Empty means unset.
func parseDate(s, field string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		d = d.UTC()
		return &d, nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, apperr.New(apperr.Validation, "%s must be an RFC 3339 timestamp or a YYYY-MM-DD date", field)
	}
	return &d, nil
}
