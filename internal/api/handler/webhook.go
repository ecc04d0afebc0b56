package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LiveKitWebhook records the files of finished recording jobs. Other events
// are acknowledged and ignored.
func (h *Handler) LiveKitWebhook(c *gin.Context) {
	job, ok, err := h.Webhooks.FinishedJob(c.Request)
	if err != nil {
		h.log.Warn().Err(err).Msg("rejected webhook")
		c.Status(http.StatusUnauthorized)
		return
	}
	if !ok {
		c.Status(http.StatusOK)
		return
	}

	recs, err := h.Recordings.Complete(c.Request.Context(), job)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.log.Info().Str("job_id", job.ID).Int("files", len(recs)).Msg("recording completed")
	c.JSON(http.StatusOK, gin.H{"recorded": len(recs)})
}
