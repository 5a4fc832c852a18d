package usecase

import (
	"context"
	"errors"
	"io"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// helper
// =====================

func quietLogger() *log.Logger {
	l := log.New("test")
	l.SetOutput(io.Discard)
	return l
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }
func i64Ptr(v int64) *int64  { return &v }

func assertHTTPStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	he, ok := AsHTTPError(err)
	require.True(t, ok, "expected HTTPError, got %T: %v", err, err)
	assert.Equal(t, status, he.Status, he.Message)
}

// =====================
// 注文ストア（order/order_item/audit_log + Tx）
// UPDATEの意味はgorm実装と同じにしてある
// =====================

type memDB struct {
	mu     sync.Mutex
	orders map[string]model.Order
	items  map[string][]model.OrderItem
	audits []model.AuditLog
	carts  *memCarts // Carts()用（カートのテストだけ）

	createErrs     []error // Createが順に返すエラー
	createItemsErr error
	confirmErr     error
	updateErr      error
	auditErr       error

	txCount int
}

func newMemDB() *memDB {
	return &memDB{
		orders: map[string]model.Order{},
		items:  map[string][]model.OrderItem{},
	}
}

type memSnapshot struct {
	orders map[string]model.Order
	items  map[string][]model.OrderItem
	audits []model.AuditLog
	carts  []model.CartItem
}

func (d *memDB) snapshot() memSnapshot {
	s := memSnapshot{
		orders: make(map[string]model.Order, len(d.orders)),
		items:  make(map[string][]model.OrderItem, len(d.items)),
		audits: append([]model.AuditLog(nil), d.audits...),
	}
	for k, v := range d.orders {
		s.orders[k] = v
	}
	for k, v := range d.items {
		s.items[k] = append([]model.OrderItem(nil), v...)
	}
	if d.carts != nil {
		d.carts.mu.Lock()
		s.carts = append([]model.CartItem(nil), d.carts.rows...)
		d.carts.mu.Unlock()
	}
	return s
}

func (d *memDB) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	d.mu.Lock()
	d.txCount++
	snap := d.snapshot()
	d.mu.Unlock()

	if err := fn(d); err != nil {
		//rollback
		d.mu.Lock()
		d.orders, d.items, d.audits = snap.orders, snap.items, snap.audits
		d.mu.Unlock()
		if d.carts != nil {
			d.carts.mu.Lock()
			d.carts.rows = snap.carts
			d.carts.mu.Unlock()
		}
		return err
	}
	return nil
}

func (d *memDB) Orders() repo.OrderRepository         { return orderView{d} }
func (d *memDB) OrderItems() repo.OrderItemRepository { return itemView{d} }
func (d *memDB) AuditLogs() repo.AuditLogRepository   { return auditView{d} }
func (d *memDB) Carts() repo.CartRepository           { return d.carts }

// テストから直接入れる
func (d *memDB) put(o model.Order) model.Order {
	d.mu.Lock()
	defer d.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = testNow
	}
	d.orders[o.ID] = o
	return o
}

func (d *memDB) get(t *testing.T, id string) model.Order {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.orders[id]
	require.True(t, ok, "order %s not stored", id)
	return o
}

func (d *memDB) orderCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.orders)
}

type orderView struct{ d *memDB }

func (v orderView) Create(ctx context.Context, order *model.Order) error {
	d := v.d
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.createErrs) > 0 {
		err := d.createErrs[0]
		d.createErrs = d.createErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, o := range d.orders {
		if o.OrderNumber == order.OrderNumber || o.StripeSessionID == order.StripeSessionID {
			return repo.ErrDuplicate
		}
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.CreatedAt = testNow
	d.orders[order.ID] = *order
	return nil
}

func (v orderView) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	v.d.mu.Lock()
	defer v.d.mu.Unlock()
	o, ok := v.d.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (v orderView) FindBySessionID(ctx context.Context, sessionID string) (model.Order, error) {
	v.d.mu.Lock()
	defer v.d.mu.Unlock()
	for _, o := range v.d.orders {
		if o.StripeSessionID == sessionID {
			return o, nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (v orderView) ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error) {
	return v.list(func(o model.Order) bool { return o.UserID != nil && *o.UserID == userID }, page, limit)
}

func (v orderView) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	return v.list(func(o model.Order) bool {
		if f.Status != "" && string(o.Status) != f.Status {
			return false
		}
		if f.PaymentStatus != "" && string(o.PaymentStatus) != f.PaymentStatus {
			return false
		}
		return true
	}, f.Page, f.Limit)
}

func (v orderView) list(match func(model.Order) bool, page, limit int) ([]model.Order, int64, error) {
	v.d.mu.Lock()
	defer v.d.mu.Unlock()

	var all []model.Order
	for _, o := range v.d.orders {
		if match(o) {
			all = append(all, o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OrderNumber > all[j].OrderNumber })

	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

// 1文のUPDATEと同じ結果になるように
func (v orderView) ConfirmPayment(ctx context.Context, sessionID string, c model.PaymentConfirmation) error {
	d := v.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.confirmErr != nil {
		return d.confirmErr
	}

	for id, o := range d.orders {
		if o.StripeSessionID != sessionID {
			continue
		}
		o.PaymentStatus = model.PaymentStatusPaid
		switch o.Status {
		case model.OrderStatusShipped, model.OrderStatusDelivered, model.OrderStatusRefunded:
		default:
			o.Status = model.OrderStatusProcessing
		}
		o.ShippingCents = c.ShippingCents
		o.TaxCents = c.TaxCents
		o.DiscountCents = c.DiscountCents
		o.TotalCents = o.SubtotalCents + c.ShippingCents + c.TaxCents - c.DiscountCents
		if c.PaymentIntentID != "" {
			pi := c.PaymentIntentID
			o.StripePaymentIntentID = &pi
		}
		if c.Email != "" {
			o.Email = c.Email
		}
		if c.Address != nil {
			o.ShippingAddress = *c.Address
		}
		d.orders[id] = o
		return nil
	}
	return repo.ErrNotFound
}

func (v orderView) MarkPaymentFailed(ctx context.Context, paymentIntentID string) error {
	return v.byIntent(paymentIntentID, []model.PaymentStatus{model.PaymentStatusPending}, model.OrderStatusCancelled, model.PaymentStatusFailed)
}

func (v orderView) MarkRefunded(ctx context.Context, paymentIntentID string) error {
	return v.byIntent(paymentIntentID, nil, model.OrderStatusRefunded, model.PaymentStatusRefunded)
}

// from が空でなければ payment_status がその中にある注文だけ
func (v orderView) byIntent(pi string, from []model.PaymentStatus, s model.OrderStatus, ps model.PaymentStatus) error {
	d := v.d
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for id, o := range d.orders {
		if o.StripePaymentIntentID == nil || *o.StripePaymentIntentID != pi {
			continue
		}
		if len(from) > 0 && !slices.Contains(from, o.PaymentStatus) {
			continue
		}
		o.Status, o.PaymentStatus = s, ps
		d.orders[id] = o
		n++
	}
	if n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (v orderView) UpdateFulfillment(ctx context.Context, orderID string, u model.FulfillmentUpdate) error {
	d := v.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.updateErr != nil {
		return d.updateErr
	}
	o, ok := d.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = u.Status
	o.TrackingNumber = u.TrackingNumber
	o.TrackingURL = u.TrackingURL
	o.Carrier = u.Carrier
	o.AdminNotes = u.AdminNotes
	if u.ShippedAt != nil {
		o.ShippedAt = u.ShippedAt
	}
	if u.DeliveredAt != nil {
		o.DeliveredAt = u.DeliveredAt
	}
	d.orders[orderID] = o
	return nil
}

type itemView struct{ d *memDB }

func (v itemView) CreateBulk(ctx context.Context, orderID string, items []model.OrderItem) error {
	d := v.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createItemsErr != nil {
		return d.createItemsErr
	}
	for _, it := range items {
		it.ID = uuid.NewString()
		it.OrderID = orderID
		d.items[orderID] = append(d.items[orderID], it)
	}
	return nil
}

func (v itemView) ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	v.d.mu.Lock()
	defer v.d.mu.Unlock()
	return append([]model.OrderItem(nil), v.d.items[orderID]...), nil
}

type auditView struct{ d *memDB }

func (v auditView) Create(ctx context.Context, l model.AuditLog) error {
	v.d.mu.Lock()
	defer v.d.mu.Unlock()
	if v.d.auditErr != nil {
		return v.d.auditErr
	}
	l.ID = int64(len(v.d.audits) + 1)
	v.d.audits = append(v.d.audits, l)
	return nil
}

func (v auditView) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	v.d.mu.Lock()
	defer v.d.mu.Unlock()
	var out []model.AuditLog
	for _, l := range v.d.audits {
		if f.ResourceID != nil && l.ResourceID != *f.ResourceID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

var (
	_ repo.TransactionManager  = (*memDB)(nil)
	_ repo.OrderRepository     = orderView{}
	_ repo.OrderItemRepository = itemView{}
	_ repo.AuditLogRepository  = auditView{}
)

// =====================
// カタログ
// =====================

type memProducts struct {
	products map[string]model.Product
	variants map[string]model.ProductVariant
	err      error
}

func newMemProducts() *memProducts {
	return &memProducts{products: map[string]model.Product{}, variants: map[string]model.ProductVariant{}}
}

func (m *memProducts) add(name string, price int64) model.Product {
	p := model.Product{ID: uuid.NewString(), Name: name, PriceCents: price, IsActive: true}
	m.products[p.ID] = p
	return p
}

func (m *memProducts) addVariant(p model.Product, name string, price *int64) model.ProductVariant {
	v := model.ProductVariant{ID: uuid.NewString(), ProductID: p.ID, Name: name, PriceCents: price}
	m.variants[v.ID] = v
	return v
}

func (m *memProducts) FindByID(ctx context.Context, id string) (model.Product, error) {
	if m.err != nil {
		return model.Product{}, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (m *memProducts) FindVariant(ctx context.Context, productID, variantID string) (model.ProductVariant, error) {
	v, ok := m.variants[variantID]
	if !ok || v.ProductID != productID {
		return model.ProductVariant{}, repo.ErrNotFound
	}
	return v, nil
}

var _ repo.ProductRepository = (*memProducts)(nil)

// =====================
// カート
// =====================

type memCarts struct {
	mu        sync.Mutex
	rows      []model.CartItem
	deleteErr map[string]error // owner key -> error
	deleted   []model.CartOwner

	addCalls  int
	addFailAt int // n回目のAddOrIncrementでaddErrを返す（0なら失敗しない）
	addErr    error
}

func newMemCarts() *memCarts {
	return &memCarts{deleteErr: map[string]error{}}
}

func ownerKey(o model.CartOwner) string {
	if o.IsGuest() {
		return "session:" + o.SessionID
	}
	return "user:" + o.UserID
}

func sameVariant(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *memCarts) ListByOwner(ctx context.Context, owner model.CartOwner) ([]model.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CartItem
	for _, r := range m.rows {
		if r.OwnedBy(owner) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memCarts) FindByID(ctx context.Context, id string) (model.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return model.CartItem{}, repo.ErrNotFound
}

func (m *memCarts) AddOrIncrement(ctx context.Context, owner model.CartOwner, productID string, variantID *string, qty int64) (model.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls++
	if m.addFailAt > 0 && m.addCalls == m.addFailAt {
		return model.CartItem{}, m.addErr
	}
	for i, r := range m.rows {
		if r.OwnedBy(owner) && r.ProductID == productID && sameVariant(r.VariantID, variantID) {
			m.rows[i].Quantity += qty
			return m.rows[i], nil
		}
	}
	it := owner.NewItem(productID, variantID, qty)
	it.ID = uuid.NewString()
	m.rows = append(m.rows, it)
	return it, nil
}

func (m *memCarts) UpdateQuantity(ctx context.Context, id string, qty int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.ID == id {
			m.rows[i].Quantity = qty
			return nil
		}
	}
	return repo.ErrNotFound
}

func (m *memCarts) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return repo.ErrNotFound
}

func (m *memCarts) DeleteByOwner(ctx context.Context, owner model.CartOwner) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, owner)
	if err := m.deleteErr[ownerKey(owner)]; err != nil {
		return 0, err
	}
	kept := m.rows[:0]
	var n int64
	for _, r := range m.rows {
		if r.OwnedBy(owner) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return n, nil
}

var _ repo.CartRepository = (*memCarts)(nil)

// =====================
// webhookイベントの記録
// =====================

type memEvents struct {
	seen    map[string]bool
	seenErr error
	markErr error
}

func newMemEvents() *memEvents { return &memEvents{seen: map[string]bool{}} }

func (m *memEvents) Seen(ctx context.Context, id string) (bool, error) {
	if m.seenErr != nil {
		return false, m.seenErr
	}
	return m.seen[id], nil
}

func (m *memEvents) MarkProcessed(ctx context.Context, id string) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.seen[id] = true
	return nil
}

// 重複排除なし（UPDATE自体の冪等性を見る用）
type forgetfulEvents struct{}

func (forgetfulEvents) Seen(context.Context, string) (bool, error)  { return false, nil }
func (forgetfulEvents) MarkProcessed(context.Context, string) error { return nil }

// =====================
// Mocks
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	args := m.Called(ctx, req)
	s, _ := args.Get(0).(CheckoutSession)
	return s, args.Error(1)
}

type MailerMock struct{ mock.Mock }

func (m *MailerMock) SendOrderConfirmation(ctx context.Context, order model.Order, items []model.OrderItem) error {
	args := m.Called(ctx, order, items)
	return args.Error(0)
}

func (m *MailerMock) SendStatusUpdate(ctx context.Context, order model.Order, previous model.OrderStatus) error {
	args := m.Called(ctx, order, previous)
	return args.Error(0)
}

func (m *MailerMock) SendShippingNotification(ctx context.Context, n model.ShippingNotification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// 検証は通すだけ（validatorパッケージ側でテスト）
type stubValidator struct{ err error }

func (v stubValidator) ValidateCheckout(ctx context.Context, in CheckoutInput) error { return v.err }

var errBoom = errors.New("boom")
