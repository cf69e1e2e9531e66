// Package state implements the synchronization core: the in-memory
// application state (profile plus three record collections) and its
// propagation between the Local Cache and the Remote Store Adapter.
//
// Every mutation writes to the Local Cache unconditionally and to the
// remote store opportunistically, only while online with an authenticated
// session. A failed remote write is reported as a non-blocking notice; the
// local write already succeeded, so the operation as a whole succeeds.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/serenityspace/healthkeeper/internal/client/cache"
	"github.com/serenityspace/healthkeeper/internal/client/events"
	"github.com/serenityspace/healthkeeper/internal/client/models"
	"github.com/serenityspace/healthkeeper/internal/client/remote"
	"github.com/serenityspace/healthkeeper/internal/logging"
)

// Defaults for the bounded session wait during Initialize. Together they
// keep the startup staleness window around two seconds.
const (
	DefaultSessionWaitAttempts = 10
	DefaultSessionWaitDelay    = 200 * time.Millisecond
)

// ErrOffline is returned by login and signup when no network is available.
// Data entry still works offline; authentication does not.
var ErrOffline = errors.New("internet connection required")

// Service owns the in-memory state. It is constructed once at startup and
// injected into every component that needs it; there is no package-level
// singleton.
type Service struct {
	cache cache.Cache
	store remote.Store
	bus   *events.Bus
	log   logging.Logger

	sessionWaitAttempts uint64
	sessionWaitDelay    time.Duration

	mu           sync.Mutex
	user         *models.Session
	profile      models.Profile
	medications  []models.Record
	appointments []models.Record
	vitals       []models.Record

	// saveMu serializes save cycles against reconnect hydration. A hydrate
	// running between an in-memory mutation and its cache write would
	// resurrect the previous collection and silently drop the mutation.
	saveMu sync.Mutex

	online  bool
	onlineM sync.RWMutex
}

// Options bundles the Service dependencies. Store may be nil when the
// remote backend is not configured; the service then works purely locally.
type Options struct {
	Cache  cache.Cache
	Store  remote.Store
	Bus    *events.Bus
	Logger logging.Logger

	SessionWaitAttempts uint64
	SessionWaitDelay    time.Duration
}

func New(opts Options) *Service {
	attempts := opts.SessionWaitAttempts
	if attempts == 0 {
		attempts = DefaultSessionWaitAttempts
	}
	delay := opts.SessionWaitDelay
	if delay <= 0 {
		delay = DefaultSessionWaitDelay
	}
	s := &Service{
		cache:               opts.Cache,
		store:               opts.Store,
		bus:                 opts.Bus,
		log:                 opts.Logger,
		sessionWaitAttempts: attempts,
		sessionWaitDelay:    delay,
		profile:             models.Profile{},
		medications:         []models.Record{},
		appointments:        []models.Record{},
		vitals:              []models.Record{},
		online:              true,
	}
	if s.store != nil {
		s.store.OnSessionChange(s.handleSessionChange)
	}
	return s
}

// SetOnline updates the process-wide connectivity flag. Save operations
// read it to decide whether to attempt a remote write.
func (s *Service) SetOnline(online bool) {
	s.onlineM.Lock()
	s.online = online
	s.onlineM.Unlock()
}

// IsOnline reports the current connectivity flag.
func (s *Service) IsOnline() bool {
	s.onlineM.RLock()
	defer s.onlineM.RUnlock()
	return s.online
}

// session returns the live remote session, or nil.
func (s *Service) session() *models.Session {
	if s.store == nil {
		return nil
	}
	return s.store.Session()
}

// Initialize hydrates state for first paint. When the cache indicates a
// prior login it loads the cached snapshot immediately, then waits a
// bounded time for the adapter to restore its session and, if one appears,
// refreshes from the remote store. The wait is attempts x delay at most.
func (s *Service) Initialize(ctx context.Context) error {
	loggedIn, err := s.cache.Get(ctx, cache.KeyLoggedIn)
	if err != nil || loggedIn != "true" {
		return nil
	}

	s.saveMu.Lock()
	s.hydrateFromCache(ctx)
	s.saveMu.Unlock()
	s.publishAll()

	if s.store == nil {
		return nil
	}

	// Bounded wait for the adapter to restore a previous session. The
	// total wait never exceeds attempts x delay; if no session appears the
	// cached snapshot stands.
	wait := time.Duration(s.sessionWaitAttempts) * s.sessionWaitDelay
	select {
	case <-s.store.Ready():
	case <-time.After(wait):
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.store.Session() == nil {
		return nil
	}

	if err := s.LoadFromRemote(ctx); err != nil {
		s.log.Warn(ctx, "remote refresh after startup failed", "error", err)
	}
	return nil
}

// LoadFromRemote fetches the user document and replaces in-memory state and
// the Local Cache with it. On failure nothing is touched, no partial
// overwrite.
func (s *Service) LoadFromRemote(ctx context.Context) error {
	sess := s.session()
	if sess == nil {
		return remote.ErrPermissionDenied
	}

	doc, err := s.store.LoadUserDocument(ctx, sess.UserID)
	if err != nil {
		return err
	}

	s.saveMu.Lock()
	s.mu.Lock()
	s.user = sess
	s.profile = doc.Profile
	s.medications = doc.Medications
	s.appointments = doc.Appointments
	s.vitals = doc.Vitals
	s.mu.Unlock()
	s.persistSnapshot(ctx, doc)
	s.saveMu.Unlock()

	s.publishAll()
	return nil
}

// persistSnapshot mirrors a loaded document into the Local Cache in one
// atomic write. Cache write failures are logged and swallowed: the
// in-memory copy is already correct and the next save will retry.
func (s *Service) persistSnapshot(ctx context.Context, doc *models.UserDocument) {
	name := doc.Profile.Name()
	if name == "" {
		name = doc.Email
	}
	values := map[string]string{cache.KeyName: name}
	for key, v := range map[string]any{
		cache.KeyProfile:      doc.Profile,
		cache.KeyMedications:  doc.Medications,
		cache.KeyAppointments: doc.Appointments,
		cache.KeyVitals:       doc.Vitals,
	} {
		data, err := json.Marshal(v)
		if err != nil {
			s.log.Error(ctx, "cache encode failed", "key", key, "error", err)
			return
		}
		values[key] = string(data)
	}
	if err := s.cache.SetMany(ctx, values); err != nil {
		s.log.Error(ctx, "cache snapshot write failed", "error", err)
	}
}

// hydrateFromCache loads the cached snapshot. All reads are tolerant:
// absent or malformed values fall back to empty collections.
func (s *Service) hydrateFromCache(ctx context.Context) {
	email, _ := s.cache.Get(ctx, cache.KeyEmail)
	userID, _ := s.cache.Get(ctx, cache.KeyUserID)

	var profile models.Profile
	s.cacheGetJSON(ctx, cache.KeyProfile, &profile)
	if profile == nil {
		profile = models.Profile{}
	}

	s.mu.Lock()
	if email != "" {
		s.user = &models.Session{UserID: userID, Email: email}
	}
	s.profile = profile
	s.medications = s.readCollection(ctx, cache.KeyMedications)
	s.appointments = s.readCollection(ctx, cache.KeyAppointments)
	s.vitals = s.readCollection(ctx, cache.KeyVitals)
	s.mu.Unlock()
}

func (s *Service) readCollection(ctx context.Context, key string) []models.Record {
	var records []models.Record
	s.cacheGetJSON(ctx, key, &records)
	if records == nil {
		records = []models.Record{}
	}
	return records
}

func (s *Service) cacheGetJSON(ctx context.Context, key string, out any) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil || raw == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		// Malformed cached value; treated as absent, never surfaced.
		s.log.Warn(ctx, "discarding malformed cache value", "key", key, "error", err)
	}
}

func (s *Service) cacheSet(ctx context.Context, key, value string) {
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.log.Error(ctx, "cache write failed", "key", key, "error", err)
	}
}

func (s *Service) cacheSetJSON(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		s.log.Error(ctx, "cache encode failed", "key", key, "error", err)
		return
	}
	s.cacheSet(ctx, key, string(data))
}

// Medications returns the in-memory medications collection, call order
// preserved.
func (s *Service) Medications() []models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneRecords(s.medications)
}

// Appointments returns the in-memory appointments collection, call order
// preserved.
func (s *Service) Appointments() []models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneRecords(s.appointments)
}

// Vitals returns the in-memory vitals collection, most recent first.
func (s *Service) Vitals() []models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneRecords(s.vitals)
}

// Profile returns the current user profile.
func (s *Service) Profile() models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := make(models.Profile, len(s.profile))
	for k, v := range s.profile {
		p[k] = v
	}
	return p
}

// User returns a copy of the session the state belongs to, which may be a
// cached offline session, or nil when signed out.
func (s *Service) User() *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// AddMedication appends the record and persists the collection. The
// snapshot written out is taken in the same critical section as the append,
// so a concurrent hydrate can never clobber the new record.
func (s *Service) AddMedication(ctx context.Context, rec models.Record) error {
	s.saveMu.Lock()
	s.mu.Lock()
	s.medications = append(s.medications, rec)
	records := models.CloneRecords(s.medications)
	s.mu.Unlock()
	err := s.saveCollection(ctx, cache.KeyMedications, remote.FieldMedications, records)
	s.saveMu.Unlock()

	if err != nil {
		return err
	}
	s.publish(events.TopicMedicationsUpdated, rec)
	return nil
}

// AddAppointment appends the record and persists the collection.
func (s *Service) AddAppointment(ctx context.Context, rec models.Record) error {
	s.saveMu.Lock()
	s.mu.Lock()
	s.appointments = append(s.appointments, rec)
	records := models.CloneRecords(s.appointments)
	s.mu.Unlock()
	err := s.saveCollection(ctx, cache.KeyAppointments, remote.FieldAppointments, records)
	s.saveMu.Unlock()

	if err != nil {
		return err
	}
	s.publish(events.TopicAppointmentsUpdated, rec)
	return nil
}

// AddVital prepends the record so the collection stays most-recent-first
// without re-sorting, then persists it.
func (s *Service) AddVital(ctx context.Context, rec models.Record) error {
	s.saveMu.Lock()
	s.mu.Lock()
	s.vitals = append([]models.Record{rec}, s.vitals...)
	records := models.CloneRecords(s.vitals)
	s.mu.Unlock()
	err := s.saveCollection(ctx, cache.KeyVitals, remote.FieldVitals, records)
	s.saveMu.Unlock()

	if err != nil {
		return err
	}
	s.publish(events.TopicVitalsUpdated, rec)
	return nil
}

// SaveMedications persists the medications collection, local first.
func (s *Service) SaveMedications(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.saveCollection(ctx, cache.KeyMedications, remote.FieldMedications, s.Medications())
}

// SaveAppointments persists the appointments collection, local first.
func (s *Service) SaveAppointments(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.saveCollection(ctx, cache.KeyAppointments, remote.FieldAppointments, s.Appointments())
}

// SaveVitals persists the vitals collection, local first.
func (s *Service) SaveVitals(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.saveCollection(ctx, cache.KeyVitals, remote.FieldVitals, s.Vitals())
}

// saveCollection always writes the Local Cache, then attempts the remote
// merge-write only while online with a session. A remote failure becomes a
// warning notice and does not fail the save.
func (s *Service) saveCollection(ctx context.Context, key, field string, records []models.Record) error {
	s.log.Info(ctx, "saving collection", "key", key, "count", len(records))
	s.cacheSetJSON(ctx, key, records)

	sess := s.session()
	if !s.IsOnline() || sess == nil {
		return nil
	}
	if err := s.store.SaveField(ctx, sess.UserID, field, records); err != nil {
		s.log.Error(ctx, "remote save failed", "field", field, "error", err)
		s.notice("warning", "Saved on this device; syncing to your account will retry later.")
	}
	return nil
}

// SaveProfile overwrites the profile wholesale, local first, then
// merge-writes it remotely and fans out the change.
func (s *Service) SaveProfile(ctx context.Context, profile models.Profile) error {
	s.saveMu.Lock()
	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()

	if name := profile.Name(); name != "" {
		s.cacheSet(ctx, cache.KeyName, name)
	}
	s.cacheSetJSON(ctx, cache.KeyProfile, profile)

	sess := s.session()
	if s.IsOnline() && sess != nil {
		if err := s.store.SaveField(ctx, sess.UserID, remote.FieldProfile, profile); err != nil {
			s.log.Error(ctx, "remote profile save failed", "error", err)
			s.notice("warning", "Profile saved on this device; syncing to your account will retry later.")
		}
	}
	s.saveMu.Unlock()

	s.publish(events.TopicUserDataUpdated, profile)
	return nil
}

// Login authenticates against the remote store. It requires connectivity
// and a configured backend, fails without touching the Local Cache
// otherwise, and guarantees fresh data on successful return.
func (s *Service) Login(ctx context.Context, email, password string) error {
	if !s.IsOnline() || s.store == nil {
		return ErrOffline
	}

	sess, err := s.store.SignIn(ctx, email, password)
	if err != nil {
		return err
	}

	s.markLoggedIn(ctx, email, sess.UserID)
	return s.LoadFromRemote(ctx)
}

// SignUp creates the account and its initial document, then loads it. Like
// Login it is connectivity-gated and touches nothing on failure.
func (s *Service) SignUp(ctx context.Context, email, password string, profile models.Profile) error {
	if !s.IsOnline() || s.store == nil {
		return ErrOffline
	}

	sess, err := s.store.SignUp(ctx, email, password, profile)
	if err != nil {
		return err
	}

	s.markLoggedIn(ctx, email, sess.UserID)
	return s.LoadFromRemote(ctx)
}

// markLoggedIn writes the fast-check auth flags in one atomic write.
func (s *Service) markLoggedIn(ctx context.Context, email, userID string) {
	err := s.cache.SetMany(ctx, map[string]string{
		cache.KeyLoggedIn: "true",
		cache.KeyEmail:    email,
		cache.KeyUserID:   userID,
	})
	if err != nil {
		s.log.Error(ctx, "cache write failed", "error", err)
	}
}

// Logout pushes current local state to the account while online, signs out
// of the remote store, and clears every cache key the application owns.
func (s *Service) Logout(ctx context.Context) error {
	if s.store != nil && s.session() != nil {
		if s.IsOnline() {
			if err := s.SyncOnReconnect(ctx); err != nil {
				s.log.Warn(ctx, "pre-logout sync failed", "error", err)
			}
		}
		if err := s.store.SignOut(ctx); err != nil {
			s.log.Warn(ctx, "remote sign-out failed", "error", err)
		}
	}

	for _, key := range cache.Keys {
		if err := s.cache.Remove(ctx, key); err != nil {
			s.log.Error(ctx, "cache remove failed", "key", key, "error", err)
		}
	}

	s.clearState()
	s.publish(events.TopicUserSignedOut, nil)
	return nil
}

func (s *Service) clearState() {
	s.mu.Lock()
	s.user = nil
	s.profile = models.Profile{}
	s.medications = []models.Record{}
	s.appointments = []models.Record{}
	s.vitals = []models.Record{}
	s.mu.Unlock()
}

// SyncOnReconnect pushes all three collections to the remote store. The
// Local Cache is re-read first; local writes always succeed, so it holds
// the most recent state after an offline stretch. The three pushes run
// concurrently and fail independently.
func (s *Service) SyncOnReconnect(ctx context.Context) error {
	sess := s.session()
	if sess == nil {
		return nil
	}

	// Hydrate and snapshot under saveMu so no save cycle is in flight
	// between its in-memory mutation and its cache write. The pushes
	// themselves run outside the lock.
	s.saveMu.Lock()
	s.hydrateFromCache(ctx)
	pushes := []struct {
		field   string
		records []models.Record
	}{
		{remote.FieldMedications, s.Medications()},
		{remote.FieldAppointments, s.Appointments()},
		{remote.FieldVitals, s.Vitals()},
	}
	s.saveMu.Unlock()

	var (
		wg   sync.WaitGroup
		errM sync.Mutex
		errs error
	)
	for _, p := range pushes {
		wg.Add(1)
		go func(field string, records []models.Record) {
			defer wg.Done()
			if err := s.store.SaveField(ctx, sess.UserID, field, records); err != nil {
				errM.Lock()
				errs = multierr.Append(errs, err)
				errM.Unlock()
			}
		}(p.field, p.records)
	}
	wg.Wait()

	if errs != nil {
		s.log.Warn(ctx, "reconnect sync incomplete", "error", errs)
		return errs
	}
	s.log.Info(ctx, "reconnect sync complete")
	return nil
}

// handleSessionChange reacts to adapter transitions: a restored or new
// session is announced to views; a sign-out clears in-memory state.
func (s *Service) handleSessionChange(sess *models.Session) {
	if sess != nil {
		s.mu.Lock()
		s.user = sess
		s.mu.Unlock()
		s.publish(events.TopicUserAuthenticated, sess)
		return
	}
	s.clearState()
	s.publish(events.TopicUserSignedOut, nil)
}

func (s *Service) publishAll() {
	s.publish(events.TopicMedicationsUpdated, s.Medications())
	s.publish(events.TopicAppointmentsUpdated, s.Appointments())
	s.publish(events.TopicVitalsUpdated, s.Vitals())
	s.publish(events.TopicUserDataUpdated, s.Profile())
}

func (s *Service) publish(topic events.Topic, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(topic, payload)
}

func (s *Service) notice(kind, message string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.TopicNotice, events.Notice{Kind: kind, Message: message})
}
