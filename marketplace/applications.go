package marketplace

import (
	"context"
	"fmt"

	"github.com/collabhub/marketstore"
)

// SubmitApplication applies a talent user to an open role. The role's
// applicant counter is incremented in a separate write after the
// application lands; the two are not atomic, so the counter is advisory.
func (s *Service) SubmitApplication(ctx context.Context, app Application) (*Application, error) {
	if app.ApplicantID == "" {
		return nil, fmt.Errorf("application applicant is required")
	}
	startup, err := s.GetStartup(ctx, app.StartupID)
	if err != nil {
		return nil, err
	}
	if startup.Status != StartupActive {
		return nil, fmt.Errorf("startup %s: %w", app.StartupID, ErrStartupInactive)
	}
	role, err := s.GetRole(ctx, app.StartupID, app.RoleID)
	if err != nil {
		return nil, err
	}
	if !role.IsOpen {
		return nil, fmt.Errorf("role %s: %w", app.RoleID, ErrRoleClosed)
	}

	app.ApplicationID = s.newID()
	app.Status = ApplicationSubmitted
	createdAt := s.tick()

	attrs, err := marketstore.MarshalAttributes(app)
	if err != nil {
		return nil, fmt.Errorf("encode application: %w", err)
	}
	item := &marketstore.Item{
		Key:        marketstore.ApplicationKey(app.ApplicationID),
		Kind:       marketstore.KindApplication,
		CreatedAt:  createdAt,
		Index1:     marketstore.ApplicationApplicantIndexKey(app.ApplicantID, app.ApplicationID),
		Index2:     marketstore.ApplicationStatusIndexKey(app.StartupID, app.RoleID, string(app.Status), createdAt),
		Attributes: attrs,
	}
	if err := s.store.Put(ctx, item); err != nil {
		return nil, err
	}
	stampTimes(item, &app.CreatedAt, &app.UpdatedAt)

	if err := s.denorm.AddToCounter(ctx, marketstore.RoleKey(app.StartupID, app.RoleID), "applicantCount", 1); err != nil {
		return nil, err
	}
	if err := s.audit(ctx, app.ApplicantID, "APPLICATION_SUBMITTED", app.ApplicationID, app.StartupID); err != nil {
		return nil, err
	}
	return &app, nil
}

// GetApplication loads an application by ID.
func (s *Service) GetApplication(ctx context.Context, applicationID string) (*Application, error) {
	var app Application
	item, err := s.getEntity(ctx, marketstore.ApplicationKey(applicationID), "application "+applicationID, &app)
	if err != nil {
		return nil, err
	}
	stampTimes(item, &app.CreatedAt, &app.UpdatedAt)
	return &app, nil
}

// UpdateApplicationStatus moves an application through review, guarded by
// the expected current status. The review index key is rewritten from the
// new status so ListRoleApplications stays consistent with the attribute.
func (s *Service) UpdateApplicationStatus(ctx context.Context, applicationID string, from, to ApplicationStatus) error {
	if to == "" {
		return fmt.Errorf("target application status is required")
	}
	app, err := s.GetApplication(ctx, applicationID)
	if err != nil {
		return err
	}
	index := marketstore.ApplicationStatusIndexKey(app.StartupID, app.RoleID, string(to), app.CreatedAt)
	err = s.store.Update(ctx, marketstore.ApplicationKey(applicationID), marketstore.Patch{
		"status":                                 string(to),
		marketstore.AttributeNameIndex2Partition: index.Partition,
		marketstore.AttributeNameIndex2Sort:      index.Sort,
	}, marketstore.WithCondition(marketstore.ConditionAttributeEquals("status", string(from))))
	if err != nil {
		return err
	}
	return s.audit(ctx, "", "APPLICATION_STATUS_CHANGED", applicationID, string(from)+">"+string(to))
}

// WithdrawApplication retracts an application and decrements the role's
// applicant counter. Only the applicant's own applications can be
// withdrawn, and only before a decision.
func (s *Service) WithdrawApplication(ctx context.Context, applicationID, applicantID string) error {
	app, err := s.GetApplication(ctx, applicationID)
	if err != nil {
		return err
	}
	if app.ApplicantID != applicantID {
		return fmt.Errorf("application %s does not belong to user %s", applicationID, applicantID)
	}
	switch app.Status {
	case ApplicationSubmitted, ApplicationInReview:
	default:
		return fmt.Errorf("application %s is already %s: %w", applicationID, app.Status, marketstore.ErrPreconditionFailed)
	}
	if err := s.UpdateApplicationStatus(ctx, applicationID, app.Status, ApplicationWithdrawn); err != nil {
		return err
	}
	return s.denorm.AddToCounter(ctx, marketstore.RoleKey(app.StartupID, app.RoleID), "applicantCount", -1)
}

// ListUserApplications pages through one user's applications.
func (s *Service) ListUserApplications(ctx context.Context, applicantID string, limit int, cursor string) (*Page[Application], error) {
	result, err := s.store.QueryIndex(ctx, marketstore.IndexQuery{
		Index:     marketstore.IndexGeneric1,
		Partition: marketstore.ApplicantPartition(applicantID),
		Limit:     limit,
		Cursor:    cursor,
	})
	if err != nil {
		return nil, err
	}
	return decodePage(result, decodeApplicationValue)
}

// ListRoleApplications pages through a role's applications. When status
// is non-empty, results narrow to that status via the index sort prefix;
// within a status they order by submission time.
func (s *Service) ListRoleApplications(ctx context.Context, startupID, roleID string, status ApplicationStatus, limit int, cursor string) (*Page[Application], error) {
	q := marketstore.IndexQuery{
		Index:     marketstore.IndexGeneric2,
		Partition: marketstore.RoleApplicationsPartition(startupID, roleID),
		Limit:     limit,
		Cursor:    cursor,
	}
	if status != "" {
		q.SortPrefix = marketstore.StatusSortPrefix(string(status))
	}
	result, err := s.store.QueryIndex(ctx, q)
	if err != nil {
		return nil, err
	}
	return decodePage(result, decodeApplicationValue)
}

func decodeApplicationValue(item *marketstore.Item) (Application, error) {
	var app Application
	if err := marketstore.UnmarshalAttributes(item.Attributes, &app); err != nil {
		return Application{}, fmt.Errorf("decode application: %w", err)
	}
	stampTimes(item, &app.CreatedAt, &app.UpdatedAt)
	return app, nil
}
