package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/danmuck/rtmctl/internal/auth"
	"github.com/danmuck/rtmctl/internal/logging"
	"github.com/danmuck/rtmctl/internal/orb"
	"github.com/danmuck/rtmctl/internal/rtm"
	"github.com/danmuck/rtmctl/internal/system"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type componentView struct {
	Name   string   `json:"name"`
	State  string   `json:"state"`
	Active bool     `json:"active"`
	Ports  []string `json:"ports,omitempty"`
}

type moduleRequest struct {
	Basename string `json:"basename" binding:"required"`
}

type createRequest struct {
	Factory string `json:"factory" binding:"required"`
}

type propertyRequest struct {
	Value *string `json:"value" binding:"required"`
}

type connectionRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

func (s *Server) registerRoutes() {
	r := s.router

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": s.name,
			"version": Version,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := s.callContext(c)
		defer cancel()
		ready := true
		detail := "naming service reachable"
		if _, err := s.client.Naming().Root().List(ctx); err != nil {
			ready = false
			detail = err.Error()
		}
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"detail":  detail,
			"uptime":  time.Since(s.appeared).String(),
			"service": s.name,
			"version": Version,
		})
	})

	hosts := r.Group("/hosts/:host")
	hosts.GET("/factories", s.handleFactories)
	hosts.GET("/components", s.handleHostComponents)
	hosts.POST("/modules", s.mutating(s.handleLoadModule)...)
	hosts.POST("/components", s.mutating(s.handleCreateComponent)...)

	comps := r.Group("/components/:name")
	comps.GET("", s.handleComponent)
	comps.POST("/activate", s.mutating(s.handleLifecycle(true))...)
	comps.POST("/deactivate", s.mutating(s.handleLifecycle(false))...)
	comps.GET("/properties/:prop", s.handleGetProperty)
	comps.PUT("/properties/:prop", s.mutating(s.handleSetProperty)...)

	r.POST("/connections", s.mutating(s.handleConnect)...)
	r.POST("/system/apply", s.mutating(s.handleApply)...)
}

// mutating prefixes h with the token guard when the server has a token.
func (s *Server) mutating(h gin.HandlerFunc) []gin.HandlerFunc {
	if s.opts.Token == "" {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{auth.Require(auth.StaticToken{Token: s.opts.Token}), h}
}

func (s *Server) callContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.opts.CallTimeout)
}

func (s *Server) host(c *gin.Context) string {
	if h := c.Param("host"); h != "" {
		return h
	}
	if h := c.Query("host"); h != "" {
		return h
	}
	return s.opts.DefaultHost
}

// component resolves name at the naming root, or inside the host context
// when the request carries ?host=.
func (s *Server) component(ctx context.Context, c *gin.Context, name string) (*rtm.Component, error) {
	if h := c.Query("host"); h != "" {
		return s.client.FindComponentOnHost(ctx, h, name)
	}
	return s.client.FindComponent(ctx, name)
}

func (s *Server) handleFactories(c *gin.Context) {
	ctx, cancel := s.callContext(c)
	defer cancel()
	mgr, err := s.client.FindManager(ctx, s.host(c))
	if err != nil {
		respondError(c, err)
		return
	}
	names, err := mgr.FactoryNames(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"host": s.host(c), "factories": names})
}

func (s *Server) handleHostComponents(c *gin.Context) {
	ctx, cancel := s.callContext(c)
	defer cancel()
	mgr, err := s.client.FindManager(ctx, s.host(c))
	if err != nil {
		respondError(c, err)
		return
	}
	comps, err := mgr.Components(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]componentView, 0, len(comps))
	for _, comp := range comps {
		view, err := describe(ctx, comp, false)
		if err != nil {
			respondError(c, err)
			return
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{"host": s.host(c), "components": views})
}

func (s *Server) handleLoadModule(c *gin.Context) {
	var req moduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := s.callContext(c)
	defer cancel()
	mgr, err := s.client.FindManager(ctx, s.host(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := mgr.Load(ctx, req.Basename); err != nil {
		var loadErr *rtm.LoadError
		if !errors.As(err, &loadErr) {
			respondError(c, err)
			return
		}
		logging.Warnf("api.load host=%q module=%q err=%v", s.host(c), req.Basename, err)
		c.JSON(http.StatusOK, gin.H{"loaded": false, "warning": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"loaded": true})
}

func (s *Server) handleCreateComponent(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := s.callContext(c)
	defer cancel()
	mgr, err := s.client.FindManager(ctx, s.host(c))
	if err != nil {
		respondError(c, err)
		return
	}
	comp, err := mgr.Create(ctx, req.Factory)
	if err != nil {
		respondError(c, err)
		return
	}
	if comp == nil {
		c.JSON(http.StatusConflict, gin.H{"error": rtm.ErrComponentDeclined.Error(), "factory": req.Factory})
		return
	}
	view, err := describe(ctx, comp, true)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (s *Server) handleComponent(c *gin.Context) {
	ctx, cancel := s.callContext(c)
	defer cancel()
	comp, err := s.component(ctx, c, c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	view, err := describe(ctx, comp, true)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleLifecycle(activate bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := s.callContext(c)
		defer cancel()
		comp, err := s.component(ctx, c, c.Param("name"))
		if err != nil {
			respondError(c, err)
			return
		}
		if comp.ExecutionContext() == nil {
			respondError(c, rtm.ErrNoExecutionContext)
			return
		}
		if activate {
			err = comp.Start(ctx)
		} else {
			err = comp.Stop(ctx)
		}
		if err != nil {
			respondError(c, err)
			return
		}
		view, err := describe(ctx, comp, false)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func (s *Server) handleGetProperty(c *gin.Context) {
	ctx, cancel := s.callContext(c)
	defer cancel()
	comp, err := s.component(ctx, c, c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	prop := c.Param("prop")
	value, ok, err := comp.Property(ctx, prop)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "property not found", "property": prop})
		return
	}
	c.JSON(http.StatusOK, gin.H{"property": prop, "value": value})
}

func (s *Server) handleSetProperty(c *gin.Context) {
	var req propertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := s.callContext(c)
	defer cancel()
	comp, err := s.component(ctx, c, c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	prop := c.Param("prop")
	if err := comp.SetProperty(ctx, prop, *req.Value); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "property": prop, "value": *req.Value})
}

func (s *Server) handleConnect(c *gin.Context) {
	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	outName, outPort, err := rtm.SplitPortSelector(req.From)
	if err != nil {
		respondError(c, err)
		return
	}
	inName, inPort, err := rtm.SplitPortSelector(req.To)
	if err != nil {
		respondError(c, err)
		return
	}
	ctx, cancel := s.callContext(c)
	defer cancel()
	out, err := s.component(ctx, c, outName)
	if err != nil {
		respondError(c, err)
		return
	}
	in, err := s.component(ctx, c, inName)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := rtm.ConnectNamed(ctx, out, outPort, in, inPort); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "connected", "from": req.From, "to": req.To})
}

// handleApply takes a YAML system plan as the request body.
func (s *Server) handleApply(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan, err := system.Parse(body)
	if err != nil {
		respondError(c, err)
		return
	}
	if plan.Host == "" {
		plan.Host = s.host(c)
	}
	ctx, cancel := s.callContext(c)
	defer cancel()
	report, err := system.Apply(ctx, s.client, plan)
	if err != nil {
		status := statusFor(err)
		c.JSON(status, gin.H{"error": err.Error(), "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}

func describe(ctx context.Context, comp *rtm.Component, withPorts bool) (componentView, error) {
	name, err := comp.Name(ctx)
	if err != nil {
		return componentView{}, err
	}
	view := componentView{Name: name, State: "UNKNOWN"}
	state, ok, err := comp.LifeCycleState(ctx)
	if err != nil {
		return componentView{}, err
	}
	if ok {
		view.State = state.String()
		view.Active = state == orb.StateActive
	}
	if withPorts {
		ports, err := comp.PortNames(ctx)
		if err != nil {
			return componentView{}, err
		}
		view.Ports = ports
	}
	return view, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, orb.ErrNameNotFound),
		errors.Is(err, orb.ErrObjectNotExist),
		errors.Is(err, rtm.ErrPortNotFound),
		errors.Is(err, rtm.ErrServiceNotFound):
		return http.StatusNotFound
	case errors.Is(err, rtm.ErrInvalidPortSelector),
		errors.Is(err, orb.ErrInvalidName),
		errors.Is(err, system.ErrInvalidPlan):
		return http.StatusBadRequest
	case errors.Is(err, orb.ErrNarrow),
		errors.Is(err, rtm.ErrNoExecutionContext),
		errors.Is(err, rtm.ErrLifecycle),
		errors.Is(err, rtm.ErrComponentDeclined):
		return http.StatusConflict
	case errors.Is(err, orb.ErrTransport),
		errors.Is(err, rtm.ErrConnect),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
