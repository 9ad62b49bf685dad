// Package classifier wraps the model sidecar behind the Predictor
// capability. The service never inspects how predictions are computed:
// the sidecar owns the model, its training and its feature handling.
package classifier

import (
	"context"

	"github.com/sentipulse/sentipulse-go/internal/models"
)

// Predictor scores feature rows with a directional call and the model's
// confidence that the true label is bullish. Implementations must return
// one prediction per input row, in input order.
type Predictor interface {
	Predict(ctx context.Context, rows []models.FeatureRow) ([]models.Prediction, error)
}
