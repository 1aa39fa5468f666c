package postgres

import (
	"database/sql"
	"time"

	"a11yscan/pkg/domain"

	"github.com/google/uuid"
)

type PgOrganization struct {
	ID   uuid.UUID `db:"id"   goqu:"skipinsert"`
	Name string    `db:"name"`

	PlanType      string `db:"plan_type"`
	BillingStatus string `db:"billing_status"`

	MaxWebsitesOverride sql.NullInt64 `db:"max_websites_override"`
	MaxPagesOverride    sql.NullInt64 `db:"max_pages_override"`

	PaymentCustomerID     sql.NullString `db:"payment_customer_id"`
	PaymentSubscriptionID sql.NullString `db:"payment_subscription_id"`
	PeriodEnd             sql.NullTime   `db:"period_end"`

	CreatedAt time.Time    `db:"created_at" goqu:"skipinsert"`
	UpdatedAt sql.NullTime `db:"updated_at" goqu:"skipinsert"`
}

func (p *PgOrganization) ToDomain() *domain.Organization {
	return &domain.Organization{
		ID:                    domain.OrganizationID(p.ID),
		Name:                  p.Name,
		PlanType:              domain.PlanType(p.PlanType),
		BillingStatus:         domain.BillingStatus(p.BillingStatus),
		MaxWebsitesOverride:   int(p.MaxWebsitesOverride.Int64),
		MaxPagesOverride:      int(p.MaxPagesOverride.Int64),
		PaymentCustomerID:     p.PaymentCustomerID.String,
		PaymentSubscriptionID: p.PaymentSubscriptionID.String,
		PeriodEnd:             p.PeriodEnd.Time,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt.Time,
	}
}

func (p *PgOrganization) FromDomain(org domain.Organization) {
	*p = PgOrganization{
		ID:            uuid.UUID(org.ID),
		Name:          org.Name,
		PlanType:      string(org.PlanType),
		BillingStatus: string(org.BillingStatus),
		MaxWebsitesOverride: sql.NullInt64{
			Int64: int64(org.MaxWebsitesOverride),
			Valid: org.MaxWebsitesOverride > 0,
		},
		MaxPagesOverride: sql.NullInt64{
			Int64: int64(org.MaxPagesOverride),
			Valid: org.MaxPagesOverride > 0,
		},
		PaymentCustomerID: sql.NullString{
			String: org.PaymentCustomerID,
			Valid:  org.PaymentCustomerID != "",
		},
		PaymentSubscriptionID: sql.NullString{
			String: org.PaymentSubscriptionID,
			Valid:  org.PaymentSubscriptionID != "",
		},
		PeriodEnd: sql.NullTime{
			Time:  org.PeriodEnd,
			Valid: !org.PeriodEnd.IsZero(),
		},
		CreatedAt: org.CreatedAt,
		UpdatedAt: sql.NullTime{
			Time:  org.UpdatedAt,
			Valid: !org.UpdatedAt.IsZero(),
		},
	}
}

type PgUser struct {
	ID             uuid.UUID `db:"id" goqu:"skipinsert"`
	OrganizationID uuid.UUID `db:"organization_id"`
	Email          string    `db:"email"`
	Role           string    `db:"role"`
	CreatedAt      time.Time `db:"created_at" goqu:"skipinsert"`
}

func (p *PgUser) ToDomain() *domain.User {
	return &domain.User{
		ID:             domain.UserID(p.ID),
		OrganizationID: domain.OrganizationID(p.OrganizationID),
		Email:          p.Email,
		Role:           domain.UserRole(p.Role),
		CreatedAt:      p.CreatedAt,
	}
}

func (p *PgUser) FromDomain(u domain.User) {
	*p = PgUser{
		ID:             uuid.UUID(u.ID),
		OrganizationID: uuid.UUID(u.OrganizationID),
		Email:          u.Email,
		Role:           string(u.Role),
		CreatedAt:      u.CreatedAt,
	}
}

type PgApiKey struct {
	ID             uuid.UUID    `db:"id" goqu:"skipinsert"`
	OrganizationID uuid.UUID    `db:"organization_id"`
	Name           string       `db:"name"`
	TokenHash      string       `db:"token_hash"`
	CreatedAt      time.Time    `db:"created_at"   goqu:"skipinsert"`
	LastUsedAt     sql.NullTime `db:"last_used_at" goqu:"skipinsert"`
}

func (p *PgApiKey) ToDomain() *domain.ApiKey {
	return &domain.ApiKey{
		ID:             domain.ApiKeyID(p.ID),
		OrganizationID: domain.OrganizationID(p.OrganizationID),
		Name:           p.Name,
		TokenHash:      p.TokenHash,
		CreatedAt:      p.CreatedAt,
		LastUsedAt:     p.LastUsedAt.Time,
	}
}

func (p *PgApiKey) FromDomain(k domain.ApiKey) {
	*p = PgApiKey{
		ID:             uuid.UUID(k.ID),
		OrganizationID: uuid.UUID(k.OrganizationID),
		Name:           k.Name,
		TokenHash:      k.TokenHash,
		CreatedAt:      k.CreatedAt,
		LastUsedAt: sql.NullTime{
			Time:  k.LastUsedAt,
			Valid: !k.LastUsedAt.IsZero(),
		},
	}
}

type PgWebsite struct {
	ID             uuid.UUID `db:"id" goqu:"skipinsert"`
	OrganizationID uuid.UUID `db:"organization_id"`
	URL            string    `db:"url"`
	Name           string    `db:"name"`
	Active         bool      `db:"active"`

	CreatedAt time.Time    `db:"created_at" goqu:"skipinsert"`
	UpdatedAt sql.NullTime `db:"updated_at" goqu:"skipinsert"`
	DeletedAt sql.NullTime `db:"deleted_at" goqu:"skipinsert"`
}

func (p *PgWebsite) ToDomain() *domain.Website {
	return &domain.Website{
		ID:             domain.WebsiteID(p.ID),
		OrganizationID: domain.OrganizationID(p.OrganizationID),
		URL:            p.URL,
		Name:           p.Name,
		Active:         p.Active,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt.Time,
		DeletedAt:      p.DeletedAt.Time,
	}
}

func (p *PgWebsite) FromDomain(site domain.Website) {
	*p = PgWebsite{
		ID:             uuid.UUID(site.ID),
		OrganizationID: uuid.UUID(site.OrganizationID),
		URL:            site.URL,
		Name:           site.Name,
		Active:         site.Active,
		CreatedAt:      site.CreatedAt,
		UpdatedAt: sql.NullTime{
			Time:  site.UpdatedAt,
			Valid: !site.UpdatedAt.IsZero(),
		},
		DeletedAt: sql.NullTime{
			Time:  site.DeletedAt,
			Valid: !site.DeletedAt.IsZero(),
		},
	}
}

type PgScan struct {
	ID             uuid.UUID `db:"id" goqu:"skipinsert"`
	WebsiteID      uuid.UUID `db:"website_id"`
	OrganizationID uuid.UUID `db:"organization_id"`

	Status  string `db:"status"`
	Trigger string `db:"trigger"`
	Kind    string `db:"kind"`

	Score          sql.NullInt64 `db:"score"`
	TotalPages     sql.NullInt64 `db:"total_pages"`
	ScannedPages   sql.NullInt64 `db:"scanned_pages"`
	TotalIssues    sql.NullInt64 `db:"total_issues"`
	CriticalIssues sql.NullInt64 `db:"critical_issues"`
	SeriousIssues  sql.NullInt64 `db:"serious_issues"`
	ModerateIssues sql.NullInt64 `db:"moderate_issues"`
	MinorIssues    sql.NullInt64 `db:"minor_issues"`
	DurationMs     sql.NullInt64 `db:"duration_ms"`

	ErrorMessage sql.NullString `db:"error_message"`

	CreatedAt   time.Time    `db:"created_at" goqu:"skipinsert"`
	CompletedAt sql.NullTime `db:"completed_at"`
}

func nullableInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)

	return &v
}

func intNullable(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func (p *PgScan) ToDomain() *domain.Scan {
	return &domain.Scan{
		ID:             domain.ScanID(p.ID),
		WebsiteID:      domain.WebsiteID(p.WebsiteID),
		OrganizationID: domain.OrganizationID(p.OrganizationID),
		Status:         domain.ScanStatus(p.Status),
		Trigger:        domain.ScanTrigger(p.Trigger),
		Kind:           domain.ScanKind(p.Kind),
		Counters: domain.ScanCounters{
			Score:          nullableInt(p.Score),
			TotalPages:     nullableInt(p.TotalPages),
			ScannedPages:   nullableInt(p.ScannedPages),
			TotalIssues:    nullableInt(p.TotalIssues),
			CriticalIssues: nullableInt(p.CriticalIssues),
			SeriousIssues:  nullableInt(p.SeriousIssues),
			ModerateIssues: nullableInt(p.ModerateIssues),
			MinorIssues:    nullableInt(p.MinorIssues),
			DurationMs:     nullableInt(p.DurationMs),
		},
		ErrorMessage: p.ErrorMessage.String,
		CreatedAt:    p.CreatedAt,
		CompletedAt:  p.CompletedAt.Time,
	}
}

func (p *PgScan) FromDomain(scan domain.Scan) {
	*p = PgScan{
		ID:             uuid.UUID(scan.ID),
		WebsiteID:      uuid.UUID(scan.WebsiteID),
		OrganizationID: uuid.UUID(scan.OrganizationID),
		Status:         string(scan.Status),
		Trigger:        string(scan.Trigger),
		Kind:           string(scan.Kind),
		Score:          intNullable(scan.Counters.Score),
		TotalPages:     intNullable(scan.Counters.TotalPages),
		ScannedPages:   intNullable(scan.Counters.ScannedPages),
		TotalIssues:    intNullable(scan.Counters.TotalIssues),
		CriticalIssues: intNullable(scan.Counters.CriticalIssues),
		SeriousIssues:  intNullable(scan.Counters.SeriousIssues),
		ModerateIssues: intNullable(scan.Counters.ModerateIssues),
		MinorIssues:    intNullable(scan.Counters.MinorIssues),
		DurationMs:     intNullable(scan.Counters.DurationMs),
		ErrorMessage: sql.NullString{
			String: scan.ErrorMessage,
			Valid:  scan.ErrorMessage != "",
		},
		CreatedAt: scan.CreatedAt,
		CompletedAt: sql.NullTime{
			Time:  scan.CompletedAt,
			Valid: !scan.CompletedAt.IsZero(),
		},
	}
}

type PgScanSchedule struct {
	ID             uuid.UUID `db:"id" goqu:"skipinsert"`
	WebsiteID      uuid.UUID `db:"website_id"`
	OrganizationID uuid.UUID `db:"organization_id"`

	Frequency string `db:"frequency"`
	Active    bool   `db:"active"`

	LastRunAt sql.NullTime `db:"last_run_at"`
	NextRunAt sql.NullTime `db:"next_run_at"`

	CreatedAt time.Time    `db:"created_at" goqu:"skipinsert"`
	UpdatedAt sql.NullTime `db:"updated_at" goqu:"skipinsert"`
}

func (p *PgScanSchedule) ToDomain() *domain.ScanSchedule {
	return &domain.ScanSchedule{
		ID:             domain.ScheduleID(p.ID),
		WebsiteID:      domain.WebsiteID(p.WebsiteID),
		OrganizationID: domain.OrganizationID(p.OrganizationID),
		Frequency:      domain.Frequency(p.Frequency),
		Active:         p.Active,
		LastRunAt:      p.LastRunAt.Time,
		NextRunAt:      p.NextRunAt.Time,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt.Time,
	}
}

func (p *PgScanSchedule) FromDomain(s domain.ScanSchedule) {
	*p = PgScanSchedule{
		ID:             uuid.UUID(s.ID),
		WebsiteID:      uuid.UUID(s.WebsiteID),
		OrganizationID: uuid.UUID(s.OrganizationID),
		Frequency:      string(s.Frequency),
		Active:         s.Active,
		LastRunAt: sql.NullTime{
			Time:  s.LastRunAt,
			Valid: !s.LastRunAt.IsZero(),
		},
		NextRunAt: sql.NullTime{
			Time:  s.NextRunAt,
			Valid: !s.NextRunAt.IsZero(),
		},
		CreatedAt: s.CreatedAt,
		UpdatedAt: sql.NullTime{
			Time:  s.UpdatedAt,
			Valid: !s.UpdatedAt.IsZero(),
		},
	}
}

type PgBillingEvent struct {
	PaymentID      string    `db:"payment_id"`
	OrganizationID uuid.UUID `db:"organization_id"`
	PaymentStatus  string    `db:"payment_status"`
	SequenceType   string    `db:"sequence_type"`
	ProcessedAt    time.Time `db:"processed_at" goqu:"skipinsert"`
}

func (p *PgBillingEvent) ToDomain() *domain.BillingEvent {
	return &domain.BillingEvent{
		PaymentID:      p.PaymentID,
		OrganizationID: domain.OrganizationID(p.OrganizationID),
		PaymentStatus:  p.PaymentStatus,
		SequenceType:   p.SequenceType,
		ProcessedAt:    p.ProcessedAt,
	}
}

func (p *PgBillingEvent) FromDomain(e domain.BillingEvent) {
	*p = PgBillingEvent{
		PaymentID:      e.PaymentID,
		OrganizationID: uuid.UUID(e.OrganizationID),
		PaymentStatus:  e.PaymentStatus,
		SequenceType:   e.SequenceType,
		ProcessedAt:    e.ProcessedAt,
	}
}
