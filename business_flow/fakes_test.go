package businessflow

import (
	"context"
	"errors"
	"io"
	"log"
	"maps"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/taptag/app/services"
	"github.com/amirphl/taptag/config"
	"github.com/amirphl/taptag/models"
	"github.com/amirphl/taptag/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// memStore is an in-memory stand-in for PostgreSQL. Transactions are fully
// serialized and rolled back by restoring a snapshot.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID     uint
	tags       *table[models.Tag]
	owners     *table[models.TagOwner]
	users      *table[models.User]
	sales      *table[models.Sale]
	wallet     *table[models.WalletTransaction]
	challenges *table[models.OTPChallenge]
	audits     *table[models.AuditLog]
}

type table[T any] struct {
	rows map[uint]T
	idOf func(*T) *uint
}

func newTable[T any](idOf func(*T) *uint) *table[T] {
	return &table[T]{rows: map[uint]T{}, idOf: idOf}
}

func (t *table[T]) get(id uint) *T {
	v, ok := t.rows[id]
	if !ok {
		return nil
	}
	return &v
}

func (t *table[T]) list(match func(*T) bool) []*T {
	ids := slices.Sorted(maps.Keys(t.rows))
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		v := t.rows[id]
		if match == nil || match(&v) {
			out = append(out, &v)
		}
	}
	return out
}

func newMemStore() *memStore {
	return &memStore{
		tags:       newTable(func(e *models.Tag) *uint { return &e.ID }),
		owners:     newTable(func(e *models.TagOwner) *uint { return &e.ID }),
		users:      newTable(func(e *models.User) *uint { return &e.ID }),
		sales:      newTable(func(e *models.Sale) *uint { return &e.ID }),
		wallet:     newTable(func(e *models.WalletTransaction) *uint { return &e.ID }),
		challenges: newTable(func(e *models.OTPChallenge) *uint { return &e.ID }),
		audits:     newTable(func(e *models.AuditLog) *uint { return &e.ID }),
	}
}

type storeSnapshot struct {
	nextID     uint
	tags       map[uint]models.Tag
	owners     map[uint]models.TagOwner
	users      map[uint]models.User
	sales      map[uint]models.Sale
	wallet     map[uint]models.WalletTransaction
	challenges map[uint]models.OTPChallenge
}

func (s *memStore) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storeSnapshot{
		nextID:     s.nextID,
		tags:       maps.Clone(s.tags.rows),
		owners:     maps.Clone(s.owners.rows),
		users:      maps.Clone(s.users.rows),
		sales:      maps.Clone(s.sales.rows),
		wallet:     maps.Clone(s.wallet.rows),
		challenges: maps.Clone(s.challenges.rows),
	}
}

func (s *memStore) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = snap.nextID
	s.tags.rows = snap.tags
	s.owners.rows = snap.owners
	s.users.rows = snap.users
	s.sales.rows = snap.sales
	s.wallet.rows = snap.wallet
	s.challenges.rows = snap.challenges
}

// fakeTxManager serializes transactions on the store and restores the snapshot on error
type fakeTxManager struct {
	s     *memStore
	calls int
}

type fakeTxKey struct{}

func (m *fakeTxManager) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()
	m.calls++
	snap := m.s.snapshot()
	if err := fn(context.WithValue(ctx, fakeTxKey{}, true)); err != nil {
		m.s.restore(snap)
		return err
	}
	return nil
}

func (m *fakeTxManager) WithSerializableTransaction(ctx context.Context, fn func(context.Context) error) error {
	return m.WithTransaction(ctx, fn)
}

func requireTx(ctx context.Context) error {
	if ctx.Value(fakeTxKey{}) == nil {
		return repository.ErrNoTransaction
	}
	return nil
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// fakeRepo implements the generic repository contract over one table
type fakeRepo[T any, F any] struct {
	s     *memStore
	t     *table[T]
	match func(*T, F) bool
}

func (r *fakeRepo[T, F]) ByID(_ context.Context, id uint) (*T, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.t.get(id), nil
}

func (r *fakeRepo[T, F]) byIDForUpdate(ctx context.Context, id uint) (*T, error) {
	if err := requireTx(ctx); err != nil {
		return nil, err
	}
	return r.ByID(ctx, id)
}

func (r *fakeRepo[T, F]) ByFilter(_ context.Context, filter F, orderBy string, limit, offset int) ([]*T, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := r.t.list(func(e *T) bool { return r.match(e, filter) })
	if orderBy == "" || strings.Contains(strings.ToUpper(orderBy), "DESC") {
		slices.Reverse(rows)
	}
	if offset > 0 {
		if offset >= len(rows) {
			return []*T{}, nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *fakeRepo[T, F]) Count(_ context.Context, filter F) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.t.list(func(e *T) bool { return r.match(e, filter) }))), nil
}

func (r *fakeRepo[T, F]) Exists(ctx context.Context, filter F) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *fakeRepo[T, F]) Save(_ context.Context, e *T) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id := r.t.idOf(e)
	if *id == 0 {
		r.s.nextID++
		*id = r.s.nextID
	}
	r.t.rows[*id] = *e
	return nil
}

func (r *fakeRepo[T, F]) SaveBatch(ctx context.Context, es []*T) error {
	for _, e := range es {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRepo[T, F]) Update(_ context.Context, e *T) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id := *r.t.idOf(e)
	if _, ok := r.t.rows[id]; !ok {
		return errors.New("row not found")
	}
	r.t.rows[id] = *e
	return nil
}

func ptrMatches[V comparable](want *V, got V) bool {
	return want == nil || *want == got
}

// Tag repository

type fakeTagRepo struct {
	*fakeRepo[models.Tag, models.TagFilter]
}

func newFakeTagRepo(s *memStore) *fakeTagRepo {
	return &fakeTagRepo{&fakeRepo[models.Tag, models.TagFilter]{s: s, t: s.tags, match: func(t *models.Tag, f models.TagFilter) bool {
		if f.Search != nil && *f.Search != "" &&
			!strings.Contains(t.ShortCode, *f.Search) && !strings.Contains(t.TagID.String(), *f.Search) {
			return false
		}
		return ptrMatches(f.ID, t.ID) && ptrMatches(f.Status, t.Status) && ptrMatches(f.BatchName, t.BatchName) &&
			ptrMatches(f.ShortCode, t.ShortCode) && (f.AssignedTo == nil || (t.AssignedTo != nil && *t.AssignedTo == *f.AssignedTo))
	}}}
}

func (r *fakeTagRepo) first(match func(*models.Tag) bool) *models.Tag {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := r.t.list(match)
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

func (r *fakeTagRepo) ByTagID(_ context.Context, id uuid.UUID) (*models.Tag, error) {
	return r.first(func(t *models.Tag) bool { return t.TagID == id }), nil
}

func (r *fakeTagRepo) ByShortCode(_ context.Context, code string) (*models.Tag, error) {
	return r.first(func(t *models.Tag) bool { return t.ShortCode == code }), nil
}

func (r *fakeTagRepo) ByIDForUpdate(ctx context.Context, id uint) (*models.Tag, error) {
	return r.byIDForUpdate(ctx, id)
}

func (r *fakeTagRepo) ListByShortCodes(_ context.Context, codes []string) ([]*models.Tag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.t.list(func(t *models.Tag) bool { return slices.Contains(codes, t.ShortCode) }), nil
}

func (r *fakeTagRepo) AssignGenerated(_ context.Context, ids []uint, affiliateID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		t, ok := r.t.rows[id]
		if !ok || t.Status != models.TagStatusGenerated {
			continue
		}
		t.Status = models.TagStatusAssigned
		t.AssignedTo = &affiliateID
		r.t.rows[id] = t
		n++
	}
	return n, nil
}

func (r *fakeTagRepo) CountByStatus(_ context.Context) (map[models.TagStatus]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[models.TagStatus]int64{}
	for _, t := range r.t.rows {
		out[t.Status]++
	}
	return out, nil
}

// Owner repository

type fakeOwnerRepo struct {
	*fakeRepo[models.TagOwner, models.TagOwnerFilter]
}

func newFakeOwnerRepo(s *memStore) *fakeOwnerRepo {
	return &fakeOwnerRepo{&fakeRepo[models.TagOwner, models.TagOwnerFilter]{s: s, t: s.owners, match: func(o *models.TagOwner, f models.TagOwnerFilter) bool {
		return ptrMatches(f.ID, o.ID) && ptrMatches(f.Phone, o.Phone) &&
			ptrMatches(f.VehicleNumber, o.VehicleNumber) && ptrMatches(f.IsActive, o.IsActive)
	}}}
}

func (r *fakeOwnerRepo) ByPhone(ctx context.Context, phone string) (*models.TagOwner, error) {
	rows, err := r.ByFilter(ctx, models.TagOwnerFilter{Phone: &phone}, "id ASC", 1, 0)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *fakeOwnerRepo) ByVehicleNumber(ctx context.Context, number string) (*models.TagOwner, error) {
	rows, err := r.ByFilter(ctx, models.TagOwnerFilter{VehicleNumber: &number}, "id ASC", 1, 0)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *fakeOwnerRepo) Save(ctx context.Context, o *models.TagOwner) error {
	if existing, _ := r.ByPhone(ctx, o.Phone); existing != nil {
		return uniqueViolation(repository.ConstraintOwnerPhone)
	}
	if existing, _ := r.ByVehicleNumber(ctx, o.VehicleNumber); existing != nil {
		return uniqueViolation(repository.ConstraintOwnerVehicleNumber)
	}
	o.TagIDs = slices.Clone(o.TagIDs)
	return r.fakeRepo.Save(ctx, o)
}

func (r *fakeOwnerRepo) Update(ctx context.Context, o *models.TagOwner) error {
	o.TagIDs = slices.Clone(o.TagIDs)
	return r.fakeRepo.Update(ctx, o)
}

func (r *fakeOwnerRepo) CountActive(ctx context.Context) (int64, error) {
	active := true
	return r.Count(ctx, models.TagOwnerFilter{IsActive: &active})
}

// User repository

type fakeUserRepo struct {
	*fakeRepo[models.User, models.UserFilter]
}

func newFakeUserRepo(s *memStore) *fakeUserRepo {
	return &fakeUserRepo{&fakeRepo[models.User, models.UserFilter]{s: s, t: s.users, match: func(u *models.User, f models.UserFilter) bool {
		return ptrMatches(f.ID, u.ID) && ptrMatches(f.Email, u.Email) && ptrMatches(f.Role, u.Role) && ptrMatches(f.IsActive, u.IsActive)
	}}}
}

func (r *fakeUserRepo) ByIDForUpdate(ctx context.Context, id uint) (*models.User, error) {
	return r.byIDForUpdate(ctx, id)
}

// Sale repository

type fakeSaleRepo struct {
	*fakeRepo[models.Sale, models.SaleFilter]
}

func newFakeSaleRepo(s *memStore) *fakeSaleRepo {
	return &fakeSaleRepo{&fakeRepo[models.Sale, models.SaleFilter]{s: s, t: s.sales, match: func(x *models.Sale, f models.SaleFilter) bool {
		if f.SalesPersonID != nil && (x.SalesPersonID == nil || *x.SalesPersonID != *f.SalesPersonID) {
			return false
		}
		if f.SalesPersonRole != nil && (x.SalesPersonRole == nil || *x.SalesPersonRole != *f.SalesPersonRole) {
			return false
		}
		return ptrMatches(f.ID, x.ID) && ptrMatches(f.TagID, x.TagID) && ptrMatches(f.OwnerID, x.OwnerID) &&
			ptrMatches(f.PaymentStatus, x.PaymentStatus) && ptrMatches(f.VerificationStatus, x.VerificationStatus)
	}}}
}

func (r *fakeSaleRepo) Save(ctx context.Context, sale *models.Sale) error {
	if existing, _ := r.ByTagID(ctx, sale.TagID); existing != nil {
		return uniqueViolation(repository.ConstraintSaleTagID)
	}
	sale.Messages = slices.Clone(sale.Messages)
	return r.fakeRepo.Save(ctx, sale)
}

func (r *fakeSaleRepo) ByTagID(ctx context.Context, tagID uint) (*models.Sale, error) {
	rows, err := r.ByFilter(ctx, models.SaleFilter{TagID: &tagID}, "id ASC", 1, 0)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *fakeSaleRepo) UpdateStatuses(_ context.Context, id uint, u repository.SaleStatusUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sale, ok := r.t.rows[id]
	if !ok {
		return errors.New("record not found")
	}
	if u.PaymentStatus != nil {
		sale.PaymentStatus = *u.PaymentStatus
	}
	if u.VerificationStatus != nil {
		sale.VerificationStatus = *u.VerificationStatus
	}
	if u.PaymentProofRef != nil {
		sale.PaymentProofRef = u.PaymentProofRef
	}
	if u.Message != "" {
		sale.Messages = append(slices.Clone(sale.Messages), u.Message)
	}
	sale.UpdatedBy = &u.UpdatedBy
	r.t.rows[id] = sale
	return nil
}

func (r *fakeSaleRepo) AppendMessage(ctx context.Context, id uint, message string, updatedBy uint) error {
	return r.UpdateStatuses(ctx, id, repository.SaleStatusUpdate{Message: message, UpdatedBy: updatedBy})
}

func (r *fakeSaleRepo) totals(salesPersonID uint, completed bool) models.SalesTotals {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out models.SalesTotals
	for _, x := range r.t.rows {
		if x.SalesPersonID == nil || *x.SalesPersonID != salesPersonID || x.IsSettled() != completed {
			continue
		}
		out.Commission += x.CommissionAmountOfSalesPerson
		out.SalesAmount += x.TotalSaleAmount
		out.Cost += x.CostAmountOfProductAndServices
		out.OwnerCommission += x.CommissionAmountOfOwner
		out.Cards++
	}
	return out
}

func (r *fakeSaleRepo) CompletedTotals(_ context.Context, id uint) (models.SalesTotals, error) {
	return r.totals(id, true), nil
}

func (r *fakeSaleRepo) PendingTotals(_ context.Context, id uint) (models.SalesTotals, error) {
	return r.totals(id, false), nil
}

// Wallet repository

type fakeWalletRepo struct {
	*fakeRepo[models.WalletTransaction, models.WalletTransactionFilter]
}

func newFakeWalletRepo(s *memStore) *fakeWalletRepo {
	return &fakeWalletRepo{&fakeRepo[models.WalletTransaction, models.WalletTransactionFilter]{s: s, t: s.wallet, match: func(x *models.WalletTransaction, f models.WalletTransactionFilter) bool {
		return ptrMatches(f.ID, x.ID) && ptrMatches(f.UserID, x.UserID) && ptrMatches(f.Type, x.Type) && ptrMatches(f.Status, x.Status)
	}}}
}

func (r *fakeWalletRepo) ByIDForUpdate(ctx context.Context, id uint) (*models.WalletTransaction, error) {
	return r.byIDForUpdate(ctx, id)
}

func (r *fakeWalletRepo) Totals(_ context.Context, userID uint) (models.WalletTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out models.WalletTotals
	for _, x := range r.t.rows {
		if x.UserID != userID {
			continue
		}
		switch {
		case x.Type == models.WalletTransactionTypeDebit && x.Status == models.WalletTransactionStatusCompleted:
			out.TotalWithdrawn += x.Amount
		case x.Type == models.WalletTransactionTypeDebit && x.Status == models.WalletTransactionStatusPending:
			out.PendingWithdrawals += x.Amount
		case x.Type == models.WalletTransactionTypeCredit && x.Status == models.WalletTransactionStatusCompleted:
			out.ManualCredits += x.Amount
		}
	}
	return out, nil
}

// OTP challenge repository

type fakeChallengeRepo struct {
	*fakeRepo[models.OTPChallenge, models.OTPChallengeFilter]
}

func newFakeChallengeRepo(s *memStore) *fakeChallengeRepo {
	return &fakeChallengeRepo{&fakeRepo[models.OTPChallenge, models.OTPChallengeFilter]{s: s, t: s.challenges, match: func(c *models.OTPChallenge, f models.OTPChallengeFilter) bool {
		return ptrMatches(f.ID, c.ID) && ptrMatches(f.TagID, c.TagID) && ptrMatches(f.Phone, c.Phone)
	}}}
}

func (r *fakeChallengeRepo) ByTagAndPhone(ctx context.Context, tagID uint, phone string) (*models.OTPChallenge, error) {
	rows, err := r.ByFilter(ctx, models.OTPChallengeFilter{TagID: &tagID, Phone: &phone}, "id ASC", 1, 0)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *fakeChallengeRepo) Upsert(_ context.Context, c *models.OTPChallenge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, existing := range r.t.rows {
		if existing.TagID == c.TagID && existing.Phone == c.Phone {
			c.ID = id
			c.Attempts = 0
			r.t.rows[id] = *c
			return nil
		}
	}
	r.s.nextID++
	c.ID = r.s.nextID
	r.t.rows[c.ID] = *c
	return nil
}

func (r *fakeChallengeRepo) IncrementAttempts(_ context.Context, id uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.t.rows[id]
	if !ok || c.Attempts >= c.MaxAttempts {
		return false, nil
	}
	c.Attempts++
	r.t.rows[id] = c
	return true, nil
}

func (r *fakeChallengeRepo) Consume(_ context.Context, id uint, hash string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.t.rows[id]
	if !ok || c.OTPHash != hash || c.IsExpiredAt(now) {
		return false, nil
	}
	delete(r.t.rows, id)
	return true, nil
}

func (r *fakeChallengeRepo) DeleteExpired(_ context.Context, before time.Time, limit int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, c := range r.t.rows {
		if limit > 0 && n >= int64(limit) {
			break
		}
		if c.ExpiresAt.Before(before) {
			delete(r.t.rows, id)
			n++
		}
	}
	return n, nil
}

// Audit repository

type fakeAuditRepo struct {
	*fakeRepo[models.AuditLog, models.AuditLogFilter]
}

func newFakeAuditRepo(s *memStore) *fakeAuditRepo {
	return &fakeAuditRepo{&fakeRepo[models.AuditLog, models.AuditLogFilter]{s: s, t: s.audits, match: func(a *models.AuditLog, f models.AuditLogFilter) bool {
		return ptrMatches(f.Action, a.Action) && ptrMatches(f.ActorID, derefOr(a.ActorID))
	}}}
}

func derefOr(p *uint) uint {
	if p == nil {
		return 0
	}
	return *p
}

func (r *fakeAuditRepo) actions() []string {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []string
	for _, a := range r.t.list(nil) {
		out = append(out, a.Action)
	}
	return out
}

// recordingNotifier captures passcodes so tests can confirm with them
type recordingNotifier struct {
	mu     sync.Mutex
	codes  map[string]string
	failed error
	done   chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{codes: map[string]string{}, done: make(chan struct{}, 64)}
}

func (n *recordingNotifier) SendOTP(_ context.Context, phone, code string, _ int) error {
	n.mu.Lock()
	n.codes[phone] = code
	err := n.failed
	n.mu.Unlock()
	n.done <- struct{}{}
	return err
}

func (n *recordingNotifier) NotifyActivation(context.Context, int64, string) error {
	return nil
}

func (n *recordingNotifier) code(phone string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[phone]
}

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	return log.New(io.Discard, "", 0)
}

// fakeClock is advanced manually
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// env wires every flow to the in-memory store
type env struct {
	store      *memStore
	tx         *fakeTxManager
	tags       *fakeTagRepo
	owners     *fakeOwnerRepo
	users      *fakeUserRepo
	sales      *fakeSaleRepo
	wallet     *fakeWalletRepo
	challenges *fakeChallengeRepo
	audits     *fakeAuditRepo
	notifier   *recordingNotifier
	clock      *fakeClock
	cfg        *config.ProductionConfig

	otp        *OTPChallengeImpl
	activation *ActivationFlowImpl
	tagFlow    *TagFlowImpl
	saleFlow   *SaleFlowImpl
	walletFlow *WalletFlowImpl
}

func testConfig() *config.ProductionConfig {
	return &config.ProductionConfig{
		OTP: config.OTPConfig{
			TTL:            10 * time.Minute,
			MaxAttempts:    5,
			ResendCooldown: time.Minute,
		},
		Commission: config.CommissionConfig{
			AdminFallback:          config.AdminFallbackCreditAdmin,
			DefaultTotalSaleAmount: 29900,
			DefaultCostAmount:      12900,
		},
		Tags: config.TagsConfig{
			PublicBaseURL: "https://tt.example.com",
			MaxBulkCount:  500,
		},
		Deployment: config.DeploymentConfig{Environment: "test"},
	}
}

var (
	testCipherOnce sync.Once
	testCipher     services.PhoneCipher
	testCipherErr  error
)

func sharedCipher(t *testing.T) services.PhoneCipher {
	t.Helper()
	testCipherOnce.Do(func() {
		testCipher, testCipherErr = services.NewPhoneCipher("test-phone-secret-0123456789")
	})
	require.NoError(t, testCipherErr)
	return testCipher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s := newMemStore()
	e := &env{
		store:      s,
		tx:         &fakeTxManager{s: s},
		tags:       newFakeTagRepo(s),
		owners:     newFakeOwnerRepo(s),
		users:      newFakeUserRepo(s),
		sales:      newFakeSaleRepo(s),
		wallet:     newFakeWalletRepo(s),
		challenges: newFakeChallengeRepo(s),
		audits:     newFakeAuditRepo(s),
		notifier:   newRecordingNotifier(),
		clock:      &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		cfg:        testConfig(),
	}

	hasher, err := services.NewOTPHasher("test-pepper-0123456789", bcrypt.MinCost)
	require.NoError(t, err)
	logger := testLogger(t)

	e.otp = NewOTPChallenge(e.challenges, hasher, e.cfg.OTP.TTL, e.cfg.OTP.MaxAttempts).(*OTPChallengeImpl)
	e.otp.now = e.clock.Now

	e.activation = NewActivationFlow(e.tags, e.owners, e.users, e.sales, e.audits, e.tx, e.otp,
		e.notifier, nil, nil, sharedCipher(t), e.cfg, logger).(*ActivationFlowImpl)
	e.activation.now = e.clock.Now

	e.tagFlow = NewTagFlow(e.tags, e.owners, e.users, e.sales, e.audits, e.tx, services.NewQRService(0), e.cfg, logger).(*TagFlowImpl)
	e.tagFlow.now = e.clock.Now

	e.saleFlow = NewSaleFlow(e.sales, e.tags, e.users, e.audits, e.tx, e.cfg, logger).(*SaleFlowImpl)
	e.saleFlow.now = e.clock.Now

	e.walletFlow = NewWalletFlow(e.users, e.sales, e.wallet, e.audits, e.tx, e.cfg, logger).(*WalletFlowImpl)
	e.walletFlow.now = e.clock.Now
	return e
}

func (e *env) addUser(t *testing.T, role models.UserRole, pct string) *models.User {
	t.Helper()
	u := &models.User{
		UUID:                 uuid.New(),
		Name:                 string(role) + " user",
		Email:                uuid.NewString() + "@example.com",
		Role:                 role,
		CommissionPercentage: decimal.RequireFromString(pct),
		IsActive:             true,
	}
	require.NoError(t, e.users.Save(context.Background(), u))
	return u
}

func (e *env) addTag(t *testing.T, code string, status models.TagStatus, assignedTo *uint) *models.Tag {
	t.Helper()
	tag := &models.Tag{
		TagID:      uuid.New(),
		ShortCode:  code,
		ShortURL:   e.cfg.Tags.PublicBaseURL + "/r/" + code,
		Status:     status,
		BatchName:  "batch-test",
		AssignedTo: assignedTo,
	}
	require.NoError(t, e.tags.Save(context.Background(), tag))
	return tag
}

func (e *env) addSale(t *testing.T, salesPersonID uint, commission int64, payment, verification models.SaleStatus) *models.Sale {
	t.Helper()
	e.store.mu.Lock()
	e.store.nextID++
	tagID := e.store.nextID
	e.store.mu.Unlock()
	sale := &models.Sale{
		TagID:                          tagID,
		OwnerID:                        1,
		SalesPersonID:                  &salesPersonID,
		SaleDate:                       e.clock.Now(),
		SaleType:                       models.SaleTypeNotConfirmed,
		TotalSaleAmount:                commission,
		CommissionAmountOfSalesPerson:  commission,
		PaymentStatus:                  payment,
		VerificationStatus:             verification,
		CommissionPercentage:           decimal.NewFromInt(100),
		CostAmountOfProductAndServices: 0,
	}
	require.NoError(t, e.sales.Save(context.Background(), sale))
	return sale
}

func (e *env) addWalletTx(t *testing.T, userID uint, typ models.WalletTransactionType, status models.WalletTransactionStatus, amount int64) *models.WalletTransaction {
	t.Helper()
	wt := &models.WalletTransaction{
		UUID:        uuid.New(),
		UserID:      userID,
		Type:        typ,
		Status:      status,
		Amount:      amount,
		Description: "seed",
	}
	require.NoError(t, e.wallet.Save(context.Background(), wt))
	return wt
}

// waitDelivery blocks until the asynchronous passcode delivery has run
func (e *env) waitDelivery(t *testing.T) {
	t.Helper()
	select {
	case <-e.notifier.done:
	case <-time.After(5 * time.Second):
		t.Fatal("passcode was not delivered")
	}
}
