// Package api exposes a printer session over HTTP with gin.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/urmzd/moonctl/pkg/api/handlers"
	"github.com/urmzd/moonctl/pkg/device"
	"github.com/urmzd/moonctl/pkg/device/schema"
	"github.com/urmzd/moonctl/pkg/metrics"
)

// Router holds the Gin engine and dependencies
type Router struct {
	engine     *gin.Engine
	controller device.Controller
	subscriber device.EventSubscriber
	validator  *schema.Validator
	history    handlers.GCodeHistory
	scanner    handlers.Scanner
}

// Option configures optional router dependencies.
type Option func(*Router)

// WithHistory serves the persisted console log on /printer/gcodes?persisted=true.
func WithHistory(h handlers.GCodeHistory) Option {
	return func(r *Router) { r.history = h }
}

// WithScanner enables GET /discovery.
func WithScanner(s handlers.Scanner) Option {
	return func(r *Router) { r.scanner = s }
}

func NewRouter(controller device.Controller, subscriber device.EventSubscriber, validator *schema.Validator, opts ...Option) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	SetupMiddleware(engine)

	router := &Router{
		engine:     engine,
		controller: controller,
		subscriber: subscriber,
		validator:  validator,
	}
	for _, opt := range opts {
		opt(router)
	}

	router.setupRoutes()
	return router
}

func (r *Router) setupRoutes() {
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	r.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	healthHandler := handlers.NewHealthHandler(r.controller)
	r.engine.GET("/health", healthHandler.Health)

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		if r.scanner != nil {
			v1.GET("/discovery", handlers.NewDiscoveryHandler(r.scanner).Scan)
		}

		rpcHandler := handlers.NewRPCHandler(r.controller, r.validator)
		v1.POST("/rpc", rpcHandler.Call)

		printerHandler := handlers.NewPrinterHandler(r.controller, r.history)
		eventsHandler := handlers.NewEventsHandler(r.controller, r.subscriber)
		control := handlers.NewControlHandler(r.controller, r.validator)

		p := v1.Group("/printer")
		{
			p.GET("", printerHandler.GetPrinter)
			p.GET("/objects", printerHandler.ListObjects)
			p.GET("/macros", printerHandler.ListMacros)
			p.GET("/gcodes", printerHandler.ListGCodes)
			p.GET("/events", eventsHandler.Events)

			p.POST("/gcode", control.RunGCode)
			p.POST("/home", control.Home)
			p.POST("/move", control.Move)
			p.POST("/temperature", control.SetTemperature)
			p.POST("/extrude", control.Extrude)
			p.POST("/fan", control.SetFan)
			p.POST("/z_offset", control.AdjustZOffset)
			p.POST("/z_offset/save", control.Action("save_z_offset"))
			p.POST("/speed_factor", control.SpeedFactor)
			p.POST("/extrude_factor", control.ExtrudeFactor)
			p.POST("/heaters/off", control.Action("heaters_off"))
			p.POST("/motors/off", control.Action("motors_off"))
			p.POST("/emergency_stop", control.Action("emergency_stop"))
			p.POST("/firmware_restart", control.Action("firmware_restart"))
			p.POST("/print/pause", control.Action("pause"))
			p.POST("/print/resume", control.Action("resume"))
			p.POST("/print/cancel", control.Action("cancel"))
			p.POST("/macros/:name", control.RunMacro)
		}
	}
}

// Handler exposes the engine for http.Server and tests.
func (r *Router) Handler() http.Handler {
	return r.engine
}

func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
