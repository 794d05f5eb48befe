// Package verification decides whether a person may pass a gate by
// checking the presented token and comparing the presented face with the
// person's reference embedding.
package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/WKowalczykDev/EntranceControl/internal/database"
	"github.com/WKowalczykDev/EntranceControl/internal/embeddings"
	"github.com/WKowalczykDev/EntranceControl/internal/encoder"
	"github.com/WKowalczykDev/EntranceControl/internal/scoring"
	"github.com/WKowalczykDev/EntranceControl/internal/token"
)

var (
	// ErrUnknownGate rejects attempts from gates that are not registered or
	// not active. No attempt is recorded for them.
	ErrUnknownGate = errors.New("unknown gate")
	// ErrInvalidRequest rejects attempts missing the gate or the image.
	ErrInvalidRequest = errors.New("invalid verification request")
)

// Messages shown at the gate. Internal error detail never reaches them.
const (
	MessageGranted     = "Access granted. Welcome %s"
	MessageDenied      = "Access denied - verification failed"
	MessageInvalidPass = "Invalid pass"
	MessageExpiredPass = "Pass expired"
	MessageNoEnrolment = "Access denied - no reference photo on file"
	MessageNoFace      = "No face detected - look at the camera and try again"
	MessageError       = "Internal image processing error"
)

// TokenValidator resolves a token value to its holder.
type TokenValidator interface {
	Validate(ctx context.Context, value string, asOf time.Time) (token.Result, error)
}

// ReferenceStore returns a person's reference embedding, building it from
// enrollment images when needed.
type ReferenceStore interface {
	GetOrBuild(ctx context.Context, personID string, provider embeddings.ImageProvider) ([]float32, error)
}

// EvidenceSaver keeps the image presented at a gate.
type EvidenceSaver interface {
	SaveEvidence(ctx context.Context, gateID string, data []byte) (string, error)
}

// AttemptEmitter hands finished attempts to the audit trail without blocking.
type AttemptEmitter interface {
	Emit(attempt database.VerificationAttempt)
}

// Request is one attempt submitted by a gate.
type Request struct {
	GateID     string
	TokenValue string
	Image      []byte
}

// Response is the outcome returned to the gate.
type Response struct {
	Decision          database.Decision
	Message           string
	PersonName        string // set only when Decision is GRANTED
	Confidence        float64
	Reason            database.Reason
	AttemptID         string
	FlaggedSuspicious bool
}

// Deps are the collaborators of an Engine. Evidence may be nil.
type Deps struct {
	Tokens     TokenValidator
	Persons    database.PersonReader
	Gates      database.GateReader
	References ReferenceStore
	Images     embeddings.ImageProvider
	Encoder    encoder.Encoder
	Evidence   EvidenceSaver
	Audit      AttemptEmitter
	Logger     *zap.Logger
}

// Options tune the decision.
type Options struct {
	Scoring       scoring.Params
	AcceptanceBar float64
	// Timeout bounds the biometric phase; zero means no extra bound.
	Timeout time.Duration
}

// Engine runs verification attempts. It is safe for concurrent use.
type Engine struct {
	deps Deps
	opts Options
	now  func() time.Time
	log  *zap.Logger
}

// NewEngine creates an engine over deps. A nil logger disables logging.
func NewEngine(deps Deps, opts Options) *Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{deps: deps, opts: opts, now: time.Now, log: log}
}

// Verify runs one attempt. Every well-formed attempt from a gate that is
// not known to be unregistered or inactive is recorded exactly once and
// answered with a Response; the returned error is reserved for requests
// rejected before that point.
func (e *Engine) Verify(ctx context.Context, req Request) (Response, error) {
	if req.GateID == "" || len(req.Image) == 0 {
		return Response{}, ErrInvalidRequest
	}

	gate, gateErr := e.deps.Gates.GetGate(ctx, req.GateID)
	if gateErr == nil && (gate == nil || !gate.Active) {
		return Response{}, fmt.Errorf("%w: %s", ErrUnknownGate, req.GateID)
	}

	a := &database.VerificationAttempt{
		ID:              uuid.NewString(),
		GateID:          req.GateID,
		TokenResult:     database.TokenUnchecked,
		BiometricResult: database.BiometricNotEvaluated,
		Timestamp:       e.now(),
	}
	log := e.log.With(zap.String("attempt_id", a.ID), zap.String("gate_id", req.GateID))

	if e.deps.Evidence != nil {
		ref, err := e.deps.Evidence.SaveEvidence(ctx, req.GateID, req.Image)
		if err != nil {
			log.Warn("saving evidence image failed", zap.Error(err))
		}
		a.EvidenceRef = ref
	}

	var resp Response
	if gateErr != nil {
		log.Error("looking up gate failed", zap.Error(gateErr))
		resp = fail(a, database.ReasonInternal)
	} else {
		resp = e.decide(ctx, req, a, log)
	}
	resp.AttemptID = a.ID

	e.deps.Audit.Emit(*a)
	log.Info("verification decided",
		zap.String("person_id", a.PersonID),
		zap.String("decision", string(a.Decision)),
		zap.String("reason", string(a.Reason)),
		zap.Float64("confidence", a.Confidence),
		zap.Bool("suspicious", a.FlaggedSuspicious))
	return resp, nil
}

// decide fills the attempt and builds the response.
func (e *Engine) decide(ctx context.Context, req Request, a *database.VerificationAttempt, log *zap.Logger) Response {
	tok, err := e.deps.Tokens.Validate(ctx, req.TokenValue, a.Timestamp)
	switch {
	case errors.Is(err, token.ErrInvalidToken):
		a.TokenResult = database.TokenInvalid
		return deny(a, database.ReasonInvalidToken, MessageInvalidPass)
	case errors.Is(err, token.ErrExpiredToken):
		a.TokenResult = database.TokenExpired
		a.PersonID = tok.PersonID
		return deny(a, database.ReasonExpiredToken, MessageExpiredPass)
	case err != nil:
		log.Error("token check failed", zap.Error(err))
		return fail(a, database.ReasonInternal)
	}
	a.TokenResult = database.TokenOK
	a.PersonID = tok.PersonID

	person, err := e.deps.Persons.GetPerson(ctx, tok.PersonID)
	if err != nil {
		log.Error("person lookup failed", zap.String("person_id", tok.PersonID), zap.Error(err))
		return fail(a, database.ReasonInternal)
	}
	if person == nil || !person.Active {
		// The token outlived its holder's access.
		return deny(a, database.ReasonInvalidToken, MessageInvalidPass)
	}

	bctx := ctx
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		bctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	reference, err := e.deps.References.GetOrBuild(bctx, person.ID, e.deps.Images)
	if err != nil {
		if errors.Is(err, embeddings.ErrNoEnrollment) {
			log.Warn("person has no usable enrollment image", zap.String("person_id", person.ID))
			return deny(a, database.ReasonNoEnrollment, MessageNoEnrolment)
		}
		log.Error("loading reference embedding failed", zap.String("person_id", person.ID), zap.Error(err))
		return fail(a, faultReason(err))
	}

	candidate, err := e.deps.Encoder.Encode(bctx, req.Image)
	if err != nil {
		if errors.Is(err, encoder.ErrNoFaceDetected) {
			log.Info("no face in presented image")
			return failWithMessage(a, database.ReasonNoFaceDetected, MessageNoFace)
		}
		log.Error("encoding presented image failed", zap.Error(err))
		return fail(a, faultReason(err))
	}
	if len(candidate) != len(reference) {
		log.Error("embedding dimension mismatch",
			zap.Int("candidate", len(candidate)),
			zap.Int("reference", len(reference)))
		return fail(a, database.ReasonModelFailure)
	}

	distance := database.CosineDistance(candidate, reference)
	score := scoring.Score(distance, e.opts.Scoring)
	a.Confidence = score.Confidence
	if score.IsMatch {
		a.BiometricResult = database.BiometricMatch
	} else {
		a.BiometricResult = database.BiometricNoMatch
	}
	log.Debug("face compared", zap.Float64("distance", distance), zap.Bool("match", score.IsMatch))

	if score.Confidence >= e.opts.AcceptanceBar {
		a.Decision = database.DecisionGranted
		return Response{
			Decision:   database.DecisionGranted,
			Message:    fmt.Sprintf(MessageGranted, person.FullName()),
			PersonName: person.FullName(),
			Confidence: a.Confidence,
		}
	}

	a.FlaggedSuspicious = true
	resp := deny(a, database.ReasonBiometricMismatch, MessageDenied)
	resp.FlaggedSuspicious = true
	return resp
}

// faultReason maps infrastructure errors to the recorded reason.
func faultReason(err error) database.Reason {
	switch {
	case errors.Is(err, embeddings.ErrPersistence):
		return database.ReasonPersistenceFailure
	case errors.Is(err, encoder.ErrModelFailure), errors.Is(err, context.DeadlineExceeded):
		return database.ReasonModelFailure
	default:
		return database.ReasonInternal
	}
}

func deny(a *database.VerificationAttempt, reason database.Reason, msg string) Response {
	a.Decision = database.DecisionDenied
	a.Reason = reason
	return Response{
		Decision:   database.DecisionDenied,
		Message:    msg,
		Confidence: a.Confidence,
		Reason:     reason,
	}
}

func fail(a *database.VerificationAttempt, reason database.Reason) Response {
	return failWithMessage(a, reason, MessageError)
}

func failWithMessage(a *database.VerificationAttempt, reason database.Reason, msg string) Response {
	a.Decision = database.DecisionError
	a.Reason = reason
	a.Confidence = 0
	return Response{
		Decision: database.DecisionError,
		Message:  msg,
		Reason:   reason,
	}
}
