package authz

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Request is the part of an inbound operation the pipeline looks at.
type Request struct {
	Path   string
	Method string
	Header http.Header
	// Principal is nil when no valid session credential was presented.
	Principal *Principal
	// RequiredRoles is empty for operations that declare no roles.
	RequiredRoles []Role
}

// Recorder observes pipeline decisions, e.g. for metrics.
type Recorder interface {
	RecordDecision(stage Stage, admitted bool, code string)
}

// Pipeline runs authenticate -> resolve tenant -> check membership ->
// check privilege in that fixed order. The first failing stage ends the
// request.
type Pipeline struct {
	resolver  TenantResolver
	authority *MembershipAuthority
	evaluator *PrivilegeEvaluator
	log       *zap.Logger
	recorder  Recorder
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// NewPipeline builds a pipeline whose membership and privilege stages
// share store.
func NewPipeline(store MembershipStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		authority: NewMembershipAuthority(store),
		evaluator: NewPrivilegeEvaluator(store),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Authorize runs req through every stage. On success the returned context
// is in StageDispatched; on failure it is in StageRejected and the error is
// an *Error.
func (p *Pipeline) Authorize(ctx context.Context, req Request) (RequestContext, error) {
	rc := RequestContext{stage: StageStart}

	if req.Principal == nil || req.Principal.UserID == "" {
		return p.reject(rc, req, ErrUnauthenticated)
	}
	rc = rc.authenticate(*req.Principal)

	res, err := p.resolver.Resolve(req.Path, req.Method, req.Header)
	if err != nil {
		return p.reject(rc, req, err)
	}
	if res.TenantID != "" {
		rc = rc.withTenant(res.TenantID)
	}
	rc = rc.advance(StageTenantResolved)

	snapshot, err := p.authority.Check(ctx, rc, req.Path)
	if err != nil {
		return p.reject(rc, req, err)
	}
	if _, ok := rc.TenantID(); ok && snapshot != nil {
		rc = rc.withRole(snapshot.Role)
	}
	rc = rc.advance(StageMembershipChecked)

	if len(req.RequiredRoles) > 0 {
		grant, err := p.evaluator.Check(ctx, req.RequiredRoles, rc, snapshot, req.Path, req.Header)
		if err != nil {
			return p.reject(rc, req, err)
		}
		rc = rc.withTenant(grant.TenantID).withRole(grant.Role).advance(StagePrivilegeChecked)
	}

	rc = rc.advance(StageDispatched)
	if p.recorder != nil {
		p.recorder.RecordDecision(StageDispatched, true, "")
	}
	return rc, nil
}

func (p *Pipeline) reject(rc RequestContext, req Request, err error) (RequestContext, error) {
	authErr := AsError(err)
	failed := rc.stage

	fields := []zap.Field{
		zap.String("stage", failed.String()),
		zap.String("code", authErr.Code),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.String("user_id", rc.userID),
		zap.String("tenant_id", rc.tenantID),
	}
	if authErr.Kind == KindInternal {
		p.log.Error("authorization failed", append(fields, zap.Error(authErr))...)
	} else {
		p.log.Info("request rejected", append(fields, zap.String("reason", authErr.Reason))...)
	}
	if p.recorder != nil {
		p.recorder.RecordDecision(failed, false, authErr.Code)
	}

	return rc.advance(StageRejected), authErr
}
