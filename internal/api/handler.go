package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dusk-indust/blueprint/internal/blueprint"
	"github.com/dusk-indust/blueprint/internal/engine"
	"github.com/dusk-indust/blueprint/internal/export"
	"github.com/dusk-indust/blueprint/internal/status"
)

// Handler serves project routes. Requests name their project in the path;
// the select-then-act sequence runs through engine.Intents.
type Handler struct {
	intents *engine.Intents
	now     func() time.Time
}

// NewHandler returns a handler for eng.
func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{intents: engine.NewIntents(eng), now: time.Now}
}

// Register attaches project routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.POST("", h.create)
	rg.GET("/:id", h.get)
	rg.DELETE("/:id", h.delete)
	rg.GET("/:id/status", h.status)
	rg.PATCH("/:id", h.rename)
	rg.PATCH("/:id/fields/:field", h.updateField)
	rg.PUT("/:id/sections/:section", h.setSection)
	rg.PUT("/:id/stage", h.setStage)
	rg.POST("/:id/stale", h.markStale)
	rg.POST("/:id/save", h.save)
	rg.POST("/:id/approve", h.approve)
	rg.POST("/:id/regenerate", h.regenerate)
	rg.POST("/:id/execute", h.execute)
	rg.GET("/:id/export", h.export)
}

func (h *Handler) eng() *engine.Engine { return h.intents.Engine() }

// project writes the current state of id with the given status code.
func (h *Handler) project(c *gin.Context, code int, id string) {
	p, ok := h.eng().Project(id)
	if !ok {
		fail(c, engine.ErrProjectNotFound)
		return
	}
	c.JSON(code, gin.H{"ok": true, "project": p, "dirty": h.eng().IsDirty(id)})
}

func (h *Handler) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": status.ForProjects(h.eng().Projects())})
}

type createReq struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		badRequest(c, "invalid body")
		return
	}
	p := blueprint.NewProject(req.ID, strings.TrimSpace(req.Title), h.now())
	if err := h.eng().AddProject(c.Request.Context(), p); err != nil {
		fail(c, err)
		return
	}
	h.project(c, http.StatusCreated, p.ID)
}

func (h *Handler) get(c *gin.Context) {
	h.project(c, http.StatusOK, c.Param("id"))
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.eng().DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) status(c *gin.Context) {
	p, ok := h.eng().Project(c.Param("id"))
	if !ok {
		fail(c, engine.ErrProjectNotFound)
		return
	}
	resp := gin.H{"ok": true, "status": status.ForProject(p)}
	if st := h.eng().Status(); st.ProjectID == p.ID {
		resp["message"] = st.Message
		resp["level"] = st.Level.String()
	}
	c.JSON(http.StatusOK, resp)
}

type renameReq struct {
	Title string `json:"title"`
}

func (h *Handler) rename(c *gin.Context) {
	var req renameReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		badRequest(c, "invalid body")
		return
	}
	id := c.Param("id")
	if err := h.intents.On(id, func(e *engine.Engine) error {
		return e.UpdateProjectTitle(strings.TrimSpace(req.Title))
	}); err != nil {
		fail(c, err)
		return
	}
	h.project(c, http.StatusOK, id)
}

type fieldReq struct {
	Text string `json:"text"`
	Save bool   `json:"save"`
}

func (h *Handler) updateField(c *gin.Context) {
	f, err := blueprint.ParseField(c.Param("field"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	var req fieldReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	id := c.Param("id")
	err = h.intents.On(id, func(e *engine.Engine) error {
		if err := e.UpdateField(f, req.Text); err != nil {
			return err
		}
		if req.Save {
			return e.Save(c.Request.Context())
		}
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.project(c, http.StatusOK, id)
}

type sectionReq struct {
	Completed bool `json:"completed"`
}

func (h *Handler) setSection(c *gin.Context) {
	var req sectionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	id := c.Param("id")
	if err := h.intents.On(id, func(e *engine.Engine) error {
		return e.SetSectionCompletion(c.Param("section"), req.Completed)
	}); err != nil {
		fail(c, err)
		return
	}
	h.project(c, http.StatusOK, id)
}

type stageReq struct {
	Stage string `json:"stage"`
}

func (h *Handler) setStage(c *gin.Context) {
	var req stageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	stage, err := blueprint.ParseStage(req.Stage)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	id := c.Param("id")
	if err := h.intents.On(id, func(e *engine.Engine) error { return e.SetStage(stage) }); err != nil {
		fail(c, err)
		return
	}
	h.project(c, http.StatusOK, id)
}

type staleReq struct {
	Stages []string `json:"stages"`
}

func (h *Handler) markStale(c *gin.Context) {
	var req staleReq
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Stages) == 0 {
		badRequest(c, "invalid body")
		return
	}
	set, err := blueprint.ParseStageSet(req.Stages)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	id := c.Param("id")
	if err := h.intents.On(id, func(e *engine.Engine) error { return e.MarkStale(set.Stages()...) }); err != nil {
		fail(c, err)
		return
	}
	h.project(c, http.StatusOK, id)
}

func (h *Handler) save(c *gin.Context) {
	id := c.Param("id")
	if err := h.intents.On(id, func(e *engine.Engine) error { return e.Save(c.Request.Context()) }); err != nil {
		fail(c, err)
		return
	}
	h.project(c, http.StatusOK, id)
}

// regenerationBody describes a regeneration outcome. A gateway failure after
// a committed approval is reported as degraded with 200.
func regenerationBody(res engine.RegenerationResult, err error) gin.H {
	body := gin.H{
		"ok":          true,
		"status":      "ok",
		"regenerated": names(res.Regenerated),
		"stale":       names(res.Stale),
		"discarded":   res.Discarded,
	}
	if err != nil {
		body["status"] = "degraded"
		body["error"] = err.Error()
	}
	return body
}

func (h *Handler) approve(c *gin.Context) {
	id := c.Param("id")
	res, err := h.intents.Approve(c.Request.Context(), id)
	if res == nil {
		fail(c, err)
		return
	}
	body := regenerationBody(res.RegenerationResult, err)
	body["approved"] = res.Approved.String()
	body["activeStage"] = res.Active.String()
	c.JSON(http.StatusOK, body)
}

func (h *Handler) regenerate(c *gin.Context) {
	id := c.Param("id")
	res, err := h.intents.Retry(c.Request.Context(), id)
	if res == nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, regenerationBody(*res, err))
}

func (h *Handler) execute(c *gin.Context) {
	id := c.Param("id")
	res, err := h.intents.Execute(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"taskId":  res.TaskID,
		"outcome": res.Outcome.Kind.String(),
		"reason":  res.Outcome.Reason,
		"report":  res.Report,
	})
}

func (h *Handler) export(c *gin.Context) {
	p, ok := h.eng().Project(c.Param("id"))
	if !ok {
		fail(c, engine.ErrProjectNotFound)
		return
	}
	switch format := c.DefaultQuery("format", "md"); format {
	case "md", "markdown":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(export.Markdown(p)))
	case "json":
		data, err := export.JSON(p, h.now())
		if err != nil {
			fail(c, err)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", data)
	case "mermaid":
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(export.GenerateMermaid(p)))
	default:
		badRequest(c, "unknown export format "+format)
	}
}

func names(stages []blueprint.Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.String()
	}
	return out
}
