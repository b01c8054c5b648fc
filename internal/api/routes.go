package api

import (
	"alcyxob/workout-chat/internal/domain"
	"alcyxob/workout-chat/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	workoutService service.WorkoutService,
	chatService service.ChatService,
	logger *zap.Logger,
) {
	authHandler := NewAuthHandler(authService, logger)
	workoutHandler := NewWorkoutHandler(workoutService, logger)
	chatHandler := NewChatHandler(chatService, logger)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})

		unitGroup := protected.Group("/units")
		{
			unitGroup.POST("", RoleMiddleware(domain.RoleCoach, domain.RoleStudent), workoutHandler.CreateUnit)
			unitGroup.GET("", workoutHandler.GetUnits)
			unitGroup.GET("/:unitId/workouts", workoutHandler.GetWorkouts)
			unitGroup.GET("/:unitId/plan-archives", workoutHandler.ListArchives)
			unitGroup.GET("/:unitId/plan-archives/:archiveId", workoutHandler.GetArchiveURL)
		}

		protected.POST("/workout-plans/process", workoutHandler.ProcessPlan)
		protected.POST("/workout-chat/stream", chatHandler.Stream)
	}
}
