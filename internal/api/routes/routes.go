// Package routes wires every handler group onto one gin.Engine.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/integrity-spine/spine/internal/api/handlers/cube"
	"github.com/integrity-spine/spine/internal/api/handlers/governance"
	"github.com/integrity-spine/spine/internal/api/handlers/lifecycle"
	"github.com/integrity-spine/spine/internal/api/handlers/orchestrator"
	"github.com/integrity-spine/spine/internal/api/handlers/policy"
	"github.com/integrity-spine/spine/internal/api/middleware"
	"github.com/integrity-spine/spine/internal/infrastructure/di"
	"github.com/integrity-spine/spine/pkg/metrics"
	"github.com/integrity-spine/spine/pkg/requestid"
)

// SetupRoutes builds the gin.Engine for every External Interface surface
// (Facet Service, Policy Engine, Orchestrator, Audit/Governance,
// Lifecycle) plus the supplemented internal storage-stats endpoint.
func SetupRoutes(container *di.Container) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.Middleware())
	router.Use(middleware.Metrics())
	router.Use(middleware.TimeoutMiddleware(middleware.DefaultExternalAPITimeout))

	cubeHandlers := cube.NewHandlers(container.Cube, container.Log)
	policyHandlers := policy.NewHandlers(container.AssetRepo, container.Policy, container.Log)
	orchestratorHandlers := orchestrator.NewHandlers(
		container.AssetRepo, container.Policy, container.Orchestrator, container.Escalation, container.Cube, container.Log,
	)
	governanceHandlers := governance.NewHandlers(container.Audit, container.Escalation, container.RateLimiter, container.ReplayGuard, container.Log)
	lifecycleHandlers := lifecycle.NewHandlers(container.AssetRepo, container.Lifecycle, container.Audit, container.DissolveStepUp, container.Log)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "healthy": container.Storage.Healthy()})
	})

	router.GET("/internal/storage/stats", func(c *gin.Context) {
		c.JSON(200, container.Storage.Stats())
	})

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	ipLimiter := middleware.NewIPRateLimiter(600)

	mesh := router.Group("")
	mesh.Use(ipLimiter.Limit())
	mesh.Use(middleware.MeshAuth(container.MeshAuth, container.Log.Zap()))
	{
		mesh.GET("/cubes/:cube_id", cubeHandlers.GetCube)
		mesh.GET("/cubes/:cube_id/faces/:facet", cubeHandlers.GetFace)
		mesh.POST("/cubes/:cube_id/transferOwnership", cubeHandlers.TransferOwnership)
		mesh.POST("/cubes/:cube_id/lifecycle/transition", lifecycleHandlers.Transition)
		mesh.POST("/cubes/:cube_id/lifecycle/authorizeDissolve", lifecycleHandlers.AuthorizeDissolve)
		mesh.POST("/cubes/:cube_id/lifecycle/dissolveStepUp/enroll", lifecycleHandlers.EnrollDissolveStepUp)

		mesh.POST("/policy/check", policyHandlers.Check)
		mesh.POST("/policy/canViewFace", policyHandlers.CanViewFace)

		mesh.POST("/intent/resolve", orchestratorHandlers.ResolveIntent)
		mesh.POST("/execute/transfer_ownership", orchestratorHandlers.ExecuteTransfer)

		mesh.POST("/audit/log", governanceHandlers.Log)
		mesh.POST("/audit/anchorChain", governanceHandlers.AnchorChain)
		mesh.GET("/audit/:scan_id/explain", governanceHandlers.Explain)
		mesh.GET("/audit/:scan_id/export", governanceHandlers.Export)
		mesh.GET("/audit/compliance-report", governanceHandlers.ComplianceReport)
		mesh.POST("/audit/escalate", governanceHandlers.Escalate)
		mesh.GET("/governance/escalations", governanceHandlers.ListEscalations)
		mesh.POST("/governance/escalations/:scan_id/decision", governanceHandlers.Decide)
	}

	return router
}
