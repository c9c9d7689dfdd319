package usecase

import (
	"context"
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/pkg/logger"
)

// SignIn stores accessToken and runs the identity transition, merging the anonymous
// cart into the remote one when this is a fresh sign-in.
func (e *CartEngine) SignIn(ctx context.Context, accessToken string) (domain.Identity, *domain.MergeReport, error) {
	id, err := e.credentials.Save(ctx, accessToken)
	if err != nil {
		return domain.Anonymous, nil, err
	}
	logger.WithContext(ctx).Info().Str("user_id", id.UserID).Msg("Signed in")
	e.publish(domain.Event{Kind: domain.EventIdentityChanged, Message: "Signed in"})

	report, err := e.SyncIdentity(ctx)
	return id, report, err
}

// SignOut forgets the credential and the cached remote cart. The local store starts
// fresh so the next visitor on this device does not inherit the user's lines.
func (e *CartEngine) SignOut(ctx context.Context) error {
	id := e.identity(ctx)
	if err := e.credentials.Clear(ctx); err != nil {
		return err
	}
	if id.Authenticated() {
		e.snapshots.Delete(snapshotKey(id))
	}

	e.mu.Lock()
	e.lastIdentity = domain.Anonymous
	e.identityKnown = true
	e.degradedAt = time.Time{}
	e.mu.Unlock()

	e.publish(domain.Event{Kind: domain.EventIdentityChanged, Message: "Signed out"})
	return e.local.Clear(ctx)
}

// SyncIdentity compares the current identity with the last one observed and runs the
// merge routine exactly once on an Anonymous -> Authenticated transition. An identity
// never observed before counts as anonymous. It returns a nil report when no
// transition happened.
func (e *CartEngine) SyncIdentity(ctx context.Context) (*domain.MergeReport, error) {
	cur := e.credentials.Current(ctx)

	e.mu.Lock()
	prev := e.lastIdentity
	known := e.identityKnown
	e.lastIdentity = cur
	e.identityKnown = true
	e.mu.Unlock()

	signedIn := cur.Authenticated() && (!known || !prev.Authenticated() || prev.UserID != cur.UserID)
	if !signedIn {
		return nil, nil
	}

	report, err := e.Merge(ctx)
	return &report, err
}

// Merge copies every local line into the remote cart, one independent call per line,
// then clears the local store whatever happened to individual lines. Lines that failed
// are an accepted, reported loss. Running it again finds an empty local store and does
// nothing. A rejected session stops the merge early; see abortMerge.
func (e *CartEngine) Merge(ctx context.Context) (domain.MergeReport, error) {
	e.mergeMu.Lock()
	defer e.mergeMu.Unlock()

	id := e.credentials.Current(ctx)
	if !id.Authenticated() {
		return domain.MergeReport{}, nil
	}

	local := e.local.Get(ctx)
	if local.Empty() {
		return domain.MergeReport{}, nil
	}

	log := logger.WithContext(ctx)
	report := domain.MergeReport{Attempted: len(local.Lines)}
	var synced []string
	for i, l := range local.Lines {
		_, err := e.remote.AddItem(ctx, l.ProductID, l.Quantity)
		if err == nil {
			synced = append(synced, l.ProductID)
			continue
		}
		if domain.KindOf(err) == domain.ErrUnauthenticated {
			report.Failed += len(local.Lines) - i
			log.Warn().Err(err).Int("synced", len(synced)).Msg("Cart merge: session rejected, aborting")
			return e.abortMerge(ctx, id, synced, report)
		}
		report.Failed++
		log.Warn().Err(err).Str("product_id", l.ProductID).Int("quantity", l.Quantity).Msg("Cart merge: line not synced")
	}

	if err := e.local.Clear(ctx); err != nil {
		return report, err
	}

	if err := e.refresh(ctx, id); err != nil {
		log.Warn().Err(err).Msg("Cart merge: refetch failed")
	}

	log.Info().
		Str("user_id", id.UserID).
		Int("attempted", report.Attempted).
		Int("failed", report.Failed).
		Msg("Cart merge completed")

	e.publish(domain.Event{
		Kind:    domain.EventCartMerged,
		Source:  domain.SourceRemote,
		Report:  &report,
		Message: domain.MergeMessage(report),
	})

	return report, nil
}

// abortMerge handles a session rejected mid-merge. The visitor is anonymous again, so
// the local store stays authoritative: lines already copied are removed from it and the
// rest are kept for the next sign-in.
func (e *CartEngine) abortMerge(ctx context.Context, id domain.Identity, synced []string, report domain.MergeReport) (domain.MergeReport, error) {
	e.dropCredentials(ctx, id)
	for _, productID := range synced {
		if err := e.local.Remove(ctx, productID); err != nil {
			return report, err
		}
	}
	e.publish(domain.Event{
		Kind:    domain.EventCartMerged,
		Source:  domain.SourceLocal,
		Report:  &report,
		Message: domain.MergeMessage(report),
	})
	return report, nil
}
