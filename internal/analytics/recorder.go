package analytics

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/prism-relay/internal/gateway"
	"github.com/nulzo/prism-relay/internal/store/model"
)

// Recorder turns failover attempts and relay calls into request logs.
// It satisfies gateway.Observer.
type Recorder struct {
	ingestor Ingestor
	now      func() time.Time
}

func NewRecorder(ingestor Ingestor) *Recorder {
	return &Recorder{ingestor: ingestor, now: time.Now}
}

func (r *Recorder) ObserveAttempt(_ context.Context, attempt gateway.Attempt) {
	r.ingestor.Log(r.entry(model.SourceEngine, attempt))
}

// RecordRelay logs one call served by the relay endpoints.
func (r *Recorder) RecordRelay(attempt gateway.Attempt) {
	r.ingestor.Log(r.entry(model.SourceRelay, attempt))
}

func (r *Recorder) entry(source model.Source, attempt gateway.Attempt) *model.RequestLog {
	log := &model.RequestLog{
		ID:         uuid.NewString(),
		Source:     source,
		ProviderID: string(attempt.Provider),
		ModelID:    attempt.Model,
		Transport:  attempt.Transport,
		ErrorKind:  string(attempt.Kind),
		StatusCode: 200,
		LatencyMS:  attempt.Latency.Milliseconds(),
		CreatedAt:  r.now().UTC(),
	}

	if attempt.Err != nil {
		log.ErrorMessage = sql.NullString{String: attempt.Err.Error(), Valid: true}
		log.StatusCode = gateway.StatusCode(attempt.Err)
		if log.ErrorKind == "" {
			log.ErrorKind = string(gateway.Classify(attempt.Err))
		}
	}

	return log
}
