package rbac

import (
	"errors"
	"net/http"

	"github.com/warden-app/warden/internal/platform/httpx"
)

// RespondAttachError writes the aggregated per-item failure shape for a
// rolled-back batch, and falls back to the standard error mapping for
// everything else.
func RespondAttachError(w http.ResponseWriter, err error) {
	var batch *BatchError
	if errors.As(err, &batch) {
		httpx.JSON(w, http.StatusBadRequest, map[string]any{
			"message": "Some assignments failed",
			"errors":  batch.Failures,
		})
		return
	}
	httpx.RespondError(w, err)
}
