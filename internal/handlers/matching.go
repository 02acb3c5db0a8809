package handlers

import (
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sieless/Taxi-Tao-sub001/internal/matching"
	"github.com/sieless/Taxi-Tao-sub001/internal/services"
	"gorm.io/gorm"
)

// GetRecommendations returns the three recommendation cards for a route. Public
// endpoint: guests browse drivers before deciding whether to sign up.
func GetRecommendations(db *gorm.DB) gin.HandlerFunc {
	matcher := matching.NewMatcher(matching.NewGormDirectory(db), matching.NewGormPricing(db))

	return func(c *gin.Context) {
		from := strings.TrimSpace(c.Query("from"))
		to := strings.TrimSpace(c.Query("to"))

		if from == "" || to == "" {
			c.JSON(400, gin.H{"error": "Both from and to locations are required"})
			return
		}

		routeKey := matching.RouteKey(from, to)

		// Serve from cache when a recent identical search exists
		var cached matching.Recommendations
		err := services.GetCachedRecommendations(c.Request.Context(), routeKey, &cached)
		if err == nil {
			c.JSON(200, recommendationsResponse(from, to, cached, true))
			return
		}
		if err != redis.Nil {
			log.Printf("Recommendation cache read failed: %v", err)
		}

		recs, err := matcher.Recommend(c.Request.Context(), from, to)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to compute recommendations"})
			return
		}

		if err := services.SetCachedRecommendations(c.Request.Context(), routeKey, recs); err != nil {
			log.Printf("Recommendation cache write failed: %v", err)
		}

		c.JSON(200, recommendationsResponse(from, to, recs, false))
	}
}

func recommendationsResponse(from, to string, recs matching.Recommendations, cached bool) gin.H {
	body := gin.H{
		"fromLocation":    from,
		"toLocation":      to,
		"recommendations": recs,
	}
	if cached {
		body["cached"] = true
	}
	if recs.BestValue == nil && recs.LowestPrice == nil && recs.BestRated == nil {
		body["hint"] = "No drivers have priced this route yet. Post a ride request and let drivers come to you."
	}
	return body
}
