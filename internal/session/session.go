package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"class-importer/internal/descriptor"
	"class-importer/internal/diagnostic"
	"class-importer/internal/errs"
	"class-importer/internal/identity"
	"class-importer/internal/logging"
	"class-importer/internal/materialize"
	"class-importer/internal/plan"
	"class-importer/internal/progdb"
)

// Config controls a session.
type Config struct {
	Plan plan.Options
	// Decider is asked whether to continue when the description's hash does
	// not match the program. A nil Decider aborts on mismatch.
	Decider  identity.Decider
	Progress ProgressFunc
	Logger   *logrus.Logger
}

// Result is the summary of one import attempt.
type Result struct {
	ID      uuid.UUID
	Outcome Outcome
	// State is the last state reached: Committed or RolledBack once Run returns.
	State   State
	Verdict identity.Verdict
	Applied int
	Planned int
	Plan    *plan.ImportPlan
	// Diagnostics holds validation, planning, and materialization findings.
	Diagnostics diagnostic.Diagnostics
	Err         error
}

// Count returns the caller-facing class count: negative when the import was
// refused, zero when nothing was applied, otherwise the applied count.
func (r *Result) Count() int {
	switch r.Outcome {
	case OutcomeRefused:
		return -1
	case OutcomeApplied:
		return r.Applied
	default:
		return 0
	}
}

// Session imports class descriptions into one database.
type Session struct {
	db  progdb.Database
	cfg Config
	log *logrus.Logger
}

// New creates a session over db.
func New(db progdb.Database, cfg Config) *Session {
	if cfg.Decider == nil {
		cfg.Decider = identity.NeverProceed
	}

	return &Session{db: db, cfg: cfg, log: logging.OrDiscard(cfg.Logger)}
}

// Run performs one import attempt. It never returns a nil Result; the
// outcome and error are recorded on it.
func (s *Session) Run(ctx context.Context, doc *descriptor.Document) *Result {
	res := &Result{ID: uuid.New(), State: StateIdle}
	log := s.log.WithField("session", res.ID.String())

	program, err := s.checkProgram(ctx)
	if err != nil {
		return s.refuse(log, res, err)
	}

	if doc == nil {
		return s.fail(log, res, errs.Inputf("class description is nil"))
	}

	s.enter(log, res, StateVerifying)

	res.Verdict = identity.Verify(doc.MD5, program.MD5)
	if !res.Verdict.Trusted() {
		mismatch := identity.Mismatch{Declared: *doc.MD5, Actual: program.MD5, Filename: doc.Filename}
		log.Warn(mismatch.String())

		proceed, err := s.cfg.Decider.ProceedOnMismatch(ctx, mismatch)

		switch {
		case err != nil && ctx.Err() != nil:
			return s.fail(log, res, errs.Cancelled(ctx.Err()))
		case err != nil:
			return s.fail(log, res, errs.Wrap(err, errs.KindIdentity, "hash mismatch decision failed"))
		case !proceed:
			return s.fail(log, res, errs.Identity(mismatch.String()))
		}

		log.Info("proceeding despite hash mismatch")
	}

	s.enter(log, res, StateBuilding)

	p, err := plan.Build(ctx, doc, s.db, s.cfg.Plan)
	res.Plan = p
	res.Diagnostics = p.Diagnostics

	if err != nil {
		return s.fail(log, res, err)
	}

	res.Planned = p.Len()

	if p.Len() == 0 {
		res.Outcome = OutcomeNoClasses
		res.State = StateCommitted
		log.Info("description contains no classes")

		return res
	}

	s.enter(log, res, StateMaterializing)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return s.fail(log, res, errs.Cancelled(ctx.Err()))
		}

		return s.fail(log, res, errs.Database(err, "begin transaction"))
	}

	applied, err := apply(ctx, p, tx, s.cfg.Progress, log)
	res.Diagnostics = p.Diagnostics

	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.WithError(rbErr).Error("rollback failed")
		}

		log.WithField("applied_before_rollback", applied).Warn("transaction rolled back")

		return s.fail(log, res, err)
	}

	if err := tx.Commit(); err != nil {
		return s.fail(log, res, errs.Database(err, "commit transaction"))
	}

	res.Applied = applied
	res.State = StateCommitted
	res.Outcome = OutcomeApplied

	log.WithFields(logrus.Fields{
		"state":    res.State.String(),
		"applied":  applied,
		"warnings": len(res.Diagnostics.Warnings),
	}).Info("import committed")

	return res
}

// checkProgram enforces that an analyzed program is open.
func (s *Session) checkProgram(ctx context.Context) (*progdb.Program, error) {
	program, err := s.db.Program(ctx)
	if progdb.IsNotFound(err) {
		return nil, errs.Precondition("no program is loaded")
	}

	if err != nil {
		return nil, errs.Database(err, "read program")
	}

	if !program.Analyzed {
		return nil, errs.Precondition("program has not been analyzed").WithContext("program", program.Name)
	}

	return program, nil
}

func (s *Session) enter(log *logrus.Entry, res *Result, state State) {
	res.State = state
	log.WithField("state", state.String()).Debug("session state")
}

func (s *Session) refuse(log *logrus.Entry, res *Result, err error) *Result {
	res.Outcome = OutcomeRefused
	res.Err = err
	log.WithError(err).Warn("import refused")

	return res
}

// fail records err and the matching outcome. Nothing is left applied.
func (s *Session) fail(log *logrus.Entry, res *Result, err error) *Result {
	res.State = StateRolledBack
	res.Applied = 0
	res.Err = err

	switch errs.KindOf(err) {
	case errs.KindCancelled, errs.KindIdentity:
		res.Outcome = OutcomeAborted
	case errs.KindPrecondition:
		res.Outcome = OutcomeRefused
	default:
		res.Outcome = OutcomeFailed
	}

	log.WithError(err).WithField("outcome", res.Outcome.String()).Warn("import did not complete")

	return res
}

// Apply materializes every class of p through tx, in plan order, and
// returns how many were applied. Cancellation of ctx is checked between
// classes only. The caller owns tx and must roll it back on error.
func Apply(ctx context.Context, p *plan.ImportPlan, tx progdb.Tx, progress ProgressFunc) (int, error) {
	return apply(ctx, p, tx, progress, logrus.NewEntry(logging.Discard()))
}

func apply(ctx context.Context, p *plan.ImportPlan, tx progdb.Tx, progress ProgressFunc, log *logrus.Entry) (int, error) {
	m := materialize.New(tx, log)

	// Writes for a class always run to completion.
	wctx := context.WithoutCancel(ctx)

	applied := 0

	if err := ctx.Err(); err != nil {
		return applied, errs.Cancelled(err)
	}

	// Cancellation is polled after each class, never mid-class.
	for i := range p.Classes {
		cp := &p.Classes[i]

		if err := m.Apply(wctx, p, cp, &p.Diagnostics); err != nil {
			var e *errs.Error
			if !errors.As(err, &e) {
				err = errs.Database(err, "materialize "+cp.Class.Name)
			}

			return applied, err
		}

		applied++

		progress.report(Progress{Index: i, Total: len(p.Classes), Class: cp.Class.Name, Applied: applied})

		if err := ctx.Err(); err != nil {
			return applied, errs.Cancelled(err)
		}
	}

	return applied, nil
}
