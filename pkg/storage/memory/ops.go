package memory

import (
	"context"
	"sort"
	"time"

	"a11yscan/pkg/domain"
	"a11yscan/pkg/storage"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// accessor implements storage.AllStorage on top of a stateHolder. It is
// embedded in both Memory and memoryTx so the same implementations serve the
// root handle and transactions.
type accessor struct {
	holder stateHolder
}

func (a accessor) StoreOrganizations(_ context.Context,
	orgs ...domain.Organization) ([]domain.Organization, error) {
	out := make([]domain.Organization, 0, len(orgs))
	err := a.holder.withState(func(s *state) error {
		for _, org := range orgs {
			if org.ID == (domain.OrganizationID{}) {
				org.ID = domain.OrganizationID(uuid.New())
			}
			if org.CreatedAt.IsZero() {
				org.CreatedAt = now()
			}
			s.organizations[uuid.UUID(org.ID)] = org
			out = append(out, org)
		}

		return nil
	})

	return out, err
}

func (a accessor) OrganizationByID(_ context.Context,
	id domain.OrganizationID) (*domain.Organization, error) {
	var result *domain.Organization
	err := a.holder.withState(func(s *state) error {
		if org, ok := s.organizations[uuid.UUID(id)]; ok {
			result = &org
		}

		return nil
	})

	return result, err
}

func (a accessor) OrganizationByCustomerID(_ context.Context,
	customerID string) (*domain.Organization, error) {
	var result *domain.Organization
	err := a.holder.withState(func(s *state) error {
		for _, org := range s.organizations {
			if org.PaymentCustomerID == customerID && customerID != "" {
				result = &org

				break
			}
		}

		return nil
	})

	return result, err
}

func (a accessor) UpdateOrganizationBilling(_ context.Context,
	id domain.OrganizationID,
	updates storage.OrganizationBillingUpdates) (*domain.Organization, error) {
	var result *domain.Organization
	err := a.holder.withState(func(s *state) error {
		org, ok := s.organizations[uuid.UUID(id)]
		if !ok {
			return nil
		}

		if updates.PlanType != nil {
			org.PlanType = *updates.PlanType
		}
		if updates.BillingStatus != nil {
			org.BillingStatus = *updates.BillingStatus
		}
		if updates.PaymentCustomerID != nil {
			org.PaymentCustomerID = *updates.PaymentCustomerID
		}
		if updates.PaymentSubscriptionID != nil {
			org.PaymentSubscriptionID = *updates.PaymentSubscriptionID
		}
		if updates.PeriodEnd != nil {
			org.PeriodEnd = *updates.PeriodEnd
		}
		if updates.ClearOverrides {
			org.MaxWebsitesOverride = 0
			org.MaxPagesOverride = 0
		}
		org.UpdatedAt = now()

		s.organizations[uuid.UUID(id)] = org
		result = &org

		return nil
	})

	return result, err
}

func (a accessor) ExpiredOrganizations(_ context.Context,
	before time.Time) ([]domain.Organization, error) {
	var out []domain.Organization
	err := a.holder.withState(func(s *state) error {
		for _, org := range s.organizations {
			if org.PlanType == domain.PlanFree ||
				org.PaymentSubscriptionID != "" ||
				org.PeriodEnd.IsZero() ||
				!org.PeriodEnd.Before(before) {
				continue
			}
			out = append(out, org)
		}
		sort.Slice(out, func(i, j int) bool {
			return out[i].PeriodEnd.Before(out[j].PeriodEnd)
		})

		return nil
	})

	return out, err
}

func (a accessor) StoreUsers(_ context.Context, users ...domain.User) ([]domain.User, error) {
	out := make([]domain.User, 0, len(users))
	err := a.holder.withState(func(s *state) error {
		for _, u := range users {
			if u.ID == (domain.UserID{}) {
				u.ID = domain.UserID(uuid.New())
			}
			if u.CreatedAt.IsZero() {
				u.CreatedAt = now()
			}
			s.users[uuid.UUID(u.ID)] = u
			out = append(out, u)
		}

		return nil
	})

	return out, err
}

func (a accessor) UserByID(_ context.Context, id domain.UserID) (*domain.User, error) {
	var result *domain.User
	err := a.holder.withState(func(s *state) error {
		if u, ok := s.users[uuid.UUID(id)]; ok {
			result = &u
		}

		return nil
	})

	return result, err
}

func (a accessor) OrganizationOwner(_ context.Context,
	orgID domain.OrganizationID) (*domain.User, error) {
	var result *domain.User
	err := a.holder.withState(func(s *state) error {
		for _, u := range s.users {
			if u.OrganizationID == orgID && u.Role == domain.RoleOwner {
				result = &u

				break
			}
		}

		return nil
	})

	return result, err
}

func (a accessor) MemberCount(_ context.Context, orgID domain.OrganizationID) (int64, error) {
	var count int64
	err := a.holder.withState(func(s *state) error {
		for _, u := range s.users {
			if u.OrganizationID == orgID {
				count++
			}
		}

		return nil
	})

	return count, err
}

func (a accessor) StoreApiKeys(_ context.Context, keys ...domain.ApiKey) ([]domain.ApiKey, error) {
	out := make([]domain.ApiKey, 0, len(keys))
	err := a.holder.withState(func(s *state) error {
		for _, k := range keys {
			if k.ID == (domain.ApiKeyID{}) {
				k.ID = domain.ApiKeyID(uuid.New())
			}
			if k.CreatedAt.IsZero() {
				k.CreatedAt = now()
			}
			s.apiKeys[uuid.UUID(k.ID)] = k
			out = append(out, k)
		}

		return nil
	})

	return out, err
}

func (a accessor) ApiKeyByTokenHash(_ context.Context, hash string) (*domain.ApiKey, error) {
	var result *domain.ApiKey
	err := a.holder.withState(func(s *state) error {
		for _, k := range s.apiKeys {
			if k.TokenHash == hash {
				result = &k

				break
			}
		}

		return nil
	})

	return result, err
}

func (a accessor) TouchApiKey(_ context.Context, id domain.ApiKeyID) error {
	return a.holder.withState(func(s *state) error {
		if k, ok := s.apiKeys[uuid.UUID(id)]; ok {
			k.LastUsedAt = now()
			s.apiKeys[uuid.UUID(id)] = k
		}

		return nil
	})
}

func (a accessor) StoreWebsites(_ context.Context, sites ...domain.Website) ([]domain.Website, error) {
	out := make([]domain.Website, 0, len(sites))
	err := a.holder.withState(func(s *state) error {
		for _, site := range sites {
			if site.ID == (domain.WebsiteID{}) {
				site.ID = domain.WebsiteID(uuid.New())
			}
			if site.CreatedAt.IsZero() {
				site.CreatedAt = now()
			}
			s.websites[uuid.UUID(site.ID)] = site
			out = append(out, site)
		}

		return nil
	})

	return out, err
}

func (a accessor) WebsiteByID(_ context.Context,
	orgID domain.OrganizationID,
	id domain.WebsiteID) (*domain.Website, error) {
	var result *domain.Website
	err := a.holder.withState(func(s *state) error {
		site, ok := s.websites[uuid.UUID(id)]
		if ok && site.OrganizationID == orgID && site.DeletedAt.IsZero() {
			result = &site
		}

		return nil
	})

	return result, err
}

func (a accessor) OrganizationWebsites(_ context.Context,
	orgID domain.OrganizationID) ([]domain.Website, error) {
	var out []domain.Website
	err := a.holder.withState(func(s *state) error {
		for _, site := range s.websites {
			if site.OrganizationID == orgID && site.DeletedAt.IsZero() {
				out = append(out, site)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})

		return nil
	})

	return out, err
}

func (a accessor) WebsiteCount(_ context.Context, orgID domain.OrganizationID) (int64, error) {
	var count int64
	err := a.holder.withState(func(s *state) error {
		for _, site := range s.websites {
			if site.OrganizationID == orgID && site.DeletedAt.IsZero() {
				count++
			}
		}

		return nil
	})

	return count, err
}

func (a accessor) DeleteWebsite(_ context.Context,
	orgID domain.OrganizationID,
	id domain.WebsiteID) (*domain.Website, error) {
	var result *domain.Website
	err := a.holder.withState(func(s *state) error {
		site, ok := s.websites[uuid.UUID(id)]
		if !ok || site.OrganizationID != orgID || !site.DeletedAt.IsZero() {
			return nil
		}
		site.DeletedAt = now()
		site.Active = false
		site.UpdatedAt = site.DeletedAt
		s.websites[uuid.UUID(id)] = site
		result = &site

		return nil
	})

	return result, err
}

func (a accessor) StoreScans(_ context.Context, scans ...domain.Scan) ([]domain.Scan, error) {
	out := make([]domain.Scan, 0, len(scans))
	err := a.holder.withState(func(s *state) error {
		for _, scan := range scans {
			if scan.ID == (domain.ScanID{}) {
				scan.ID = domain.ScanID(uuid.New())
			}
			if scan.CreatedAt.IsZero() {
				scan.CreatedAt = now()
			}
			s.scans[uuid.UUID(scan.ID)] = scan
			out = append(out, scan)
		}

		return nil
	})

	return out, err
}

func (a accessor) ScanByID(_ context.Context,
	orgID domain.OrganizationID,
	id domain.ScanID) (*domain.Scan, error) {
	var result *domain.Scan
	err := a.holder.withState(func(s *state) error {
		scan, ok := s.scans[uuid.UUID(id)]
		if ok && scan.OrganizationID == orgID {
			result = &scan
		}

		return nil
	})

	return result, err
}

func (a accessor) ApplyScanProgress(_ context.Context,
	id domain.ScanID,
	progress storage.ScanProgress) (*domain.Scan, error) {
	var result *domain.Scan
	err := a.holder.withState(func(s *state) error {
		scan, ok := s.scans[uuid.UUID(id)]
		if !ok {
			return nil
		}
		if scan.Status.Terminal() {
			return storage.ErrTerminalScan
		}
		if !domain.CanTransition(scan.Status, progress.Status) {
			// stale report, leave the row untouched
			result = &scan

			return nil
		}

		scan.Status = progress.Status
		mergeCounter := func(dst **int, src *int) {
			if src != nil {
				*dst = src
			}
		}
		mergeCounter(&scan.Counters.Score, progress.Counters.Score)
		mergeCounter(&scan.Counters.TotalPages, progress.Counters.TotalPages)
		mergeCounter(&scan.Counters.ScannedPages, progress.Counters.ScannedPages)
		mergeCounter(&scan.Counters.TotalIssues, progress.Counters.TotalIssues)
		mergeCounter(&scan.Counters.CriticalIssues, progress.Counters.CriticalIssues)
		mergeCounter(&scan.Counters.SeriousIssues, progress.Counters.SeriousIssues)
		mergeCounter(&scan.Counters.ModerateIssues, progress.Counters.ModerateIssues)
		mergeCounter(&scan.Counters.MinorIssues, progress.Counters.MinorIssues)
		mergeCounter(&scan.Counters.DurationMs, progress.Counters.DurationMs)
		if progress.ErrorMessage != nil {
			scan.ErrorMessage = *progress.ErrorMessage
		}
		if progress.CompletedAt != nil {
			scan.CompletedAt = *progress.CompletedAt
		}

		s.scans[uuid.UUID(id)] = scan
		result = &scan

		return nil
	})

	return result, err
}

func (a accessor) NonTerminalScanCount(_ context.Context,
	orgID domain.OrganizationID) (int64, error) {
	var count int64
	err := a.holder.withState(func(s *state) error {
		for _, scan := range s.scans {
			if scan.OrganizationID == orgID && !scan.Status.Terminal() {
				count++
			}
		}

		return nil
	})

	return count, err
}

func (a accessor) HasNonTerminalScan(_ context.Context,
	websiteID domain.WebsiteID) (bool, error) {
	var found bool
	err := a.holder.withState(func(s *state) error {
		for _, scan := range s.scans {
			if scan.WebsiteID == websiteID && !scan.Status.Terminal() {
				found = true

				break
			}
		}

		return nil
	})

	return found, err
}

func (a accessor) OrganizationScans(_ context.Context,
	orgID domain.OrganizationID,
	cursor time.Time,
	limit uint) (storage.OrganizationScans, error) {
	var result storage.OrganizationScans
	err := a.holder.withState(func(s *state) error {
		var all []domain.Scan
		for _, scan := range s.scans {
			if scan.OrganizationID != orgID {
				continue
			}
			if !cursor.IsZero() && !scan.CreatedAt.Before(cursor) {
				continue
			}
			all = append(all, scan)
		}
		sort.Slice(all, func(i, j int) bool {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		})

		if uint(len(all)) > limit {
			all = all[:limit]
			next := all[len(all)-1].CreatedAt
			result.NextCursor = &next
		}
		result.Scans = all

		return nil
	})

	return result, err
}

func (a accessor) StoreSchedules(_ context.Context,
	schedules ...domain.ScanSchedule) ([]domain.ScanSchedule, error) {
	out := make([]domain.ScanSchedule, 0, len(schedules))
	err := a.holder.withState(func(s *state) error {
		for _, schedule := range schedules {
			if schedule.ID == (domain.ScheduleID{}) {
				schedule.ID = domain.ScheduleID(uuid.New())
			}
			if schedule.CreatedAt.IsZero() {
				schedule.CreatedAt = now()
			}
			s.schedules[uuid.UUID(schedule.ID)] = schedule
			out = append(out, schedule)
		}

		return nil
	})

	return out, err
}

func (a accessor) ScheduleByID(_ context.Context,
	orgID domain.OrganizationID,
	id domain.ScheduleID) (*domain.ScanSchedule, error) {
	var result *domain.ScanSchedule
	err := a.holder.withState(func(s *state) error {
		schedule, ok := s.schedules[uuid.UUID(id)]
		if ok && schedule.OrganizationID == orgID {
			result = &schedule
		}

		return nil
	})

	return result, err
}

func (a accessor) OrganizationSchedules(_ context.Context,
	orgID domain.OrganizationID) ([]domain.ScanSchedule, error) {
	var out []domain.ScanSchedule
	err := a.holder.withState(func(s *state) error {
		for _, schedule := range s.schedules {
			if schedule.OrganizationID == orgID {
				out = append(out, schedule)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})

		return nil
	})

	return out, err
}

func (a accessor) DueSchedules(_ context.Context, due time.Time) ([]domain.ScanSchedule, error) {
	var out []domain.ScanSchedule
	err := a.holder.withState(func(s *state) error {
		for _, schedule := range s.schedules {
			if !schedule.Active {
				continue
			}
			if schedule.NextRunAt.IsZero() || !schedule.NextRunAt.After(due) {
				out = append(out, schedule)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			return out[i].NextRunAt.Before(out[j].NextRunAt)
		})

		return nil
	})

	return out, err
}

func (a accessor) MarkScheduleRun(_ context.Context,
	id domain.ScheduleID,
	lastRun, nextRun time.Time) error {
	return a.holder.withState(func(s *state) error {
		if schedule, ok := s.schedules[uuid.UUID(id)]; ok {
			schedule.LastRunAt = lastRun
			schedule.NextRunAt = nextRun
			schedule.UpdatedAt = now()
			s.schedules[uuid.UUID(id)] = schedule
		}

		return nil
	})
}

func (a accessor) RecordBillingEvent(_ context.Context,
	event domain.BillingEvent) (bool, error) {
	var inserted bool
	err := a.holder.withState(func(s *state) error {
		if _, ok := s.billingEvents[event.PaymentID]; ok {
			return nil
		}
		if event.ProcessedAt.IsZero() {
			event.ProcessedAt = now()
		}
		s.billingEvents[event.PaymentID] = event
		inserted = true

		return nil
	})

	return inserted, err
}

func (a accessor) BillingEventByPaymentID(_ context.Context,
	paymentID string) (*domain.BillingEvent, error) {
	var result *domain.BillingEvent
	err := a.holder.withState(func(s *state) error {
		if event, ok := s.billingEvents[paymentID]; ok {
			result = &event
		}

		return nil
	})

	return result, err
}

func (a accessor) AddJob(_ context.Context,
	args river.JobArgs,
	opts *river.InsertOpts) (bool, error) {
	var inserted bool
	err := a.holder.withState(func(s *state) error {
		if s.addJobErr != nil {
			return s.addJobErr
		}
		s.jobs = append(s.jobs, InsertedJob{Args: args, Opts: opts})
		inserted = true

		return nil
	})

	return inserted, err
}
