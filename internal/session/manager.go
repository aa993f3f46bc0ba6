package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/agrivet-pos/internal/cart"
	"github.com/angelmondragon/agrivet-pos/internal/checkout"
	pkgerrors "github.com/angelmondragon/agrivet-pos/pkg/errors"
	"github.com/angelmondragon/agrivet-pos/pkg/logger"
)

var ErrSessionNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "session not found")

// Session is one open till. It owns exactly one cart for its lifetime.
type Session struct {
	ID        string
	CashierID string
	OpenedAt  time.Time

	mu     sync.Mutex
	cart   *cart.Cart
	closed bool
}

// View is a point-in-time read of a session and its cart.
type View struct {
	SessionID       string          `json:"session_id"`
	CashierID       string          `json:"cashier_id"`
	OpenedAt        time.Time       `json:"opened_at"`
	Lines           []cart.LineView `json:"lines"`
	Totals          cart.Totals     `json:"totals"`
	CheckoutPending bool            `json:"checkout_pending"`
}

// Manager tracks open sessions. Operations on one session are serialized by
// that session's lock; separate sessions never contend.
type Manager struct {
	catalog   cart.Catalog
	checkout  *checkout.Service
	snapshots SnapshotStore
	logg      *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager wires a session manager. snapshots may be nil, in which case
// sessions live only in memory.
func NewManager(cat cart.Catalog, co *checkout.Service, snapshots SnapshotStore, logg *logger.Logger) (*Manager, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if co == nil {
		return nil, fmt.Errorf("checkout service required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Manager{
		catalog:   cat,
		checkout:  co,
		snapshots: snapshots,
		logg:      logg,
		sessions:  make(map[string]*Session),
	}, nil
}

// Open starts a session with an empty cart.
func (m *Manager) Open(ctx context.Context, cashierID string) (View, error) {
	cashierID = strings.TrimSpace(cashierID)
	if cashierID == "" {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "cashier id required")
	}
	sess := &Session{
		ID:        uuid.NewString(),
		CashierID: cashierID,
		OpenedAt:  time.Now().UTC(),
		cart:      cart.New(m.catalog),
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	m.persist(ctx, sess)
	m.logg.Info(m.logg.WithCashierID(m.logg.WithSessionID(ctx, sess.ID), cashierID), "session.opened")
	return sess.view(), nil
}

// Get returns the session, resuming it from its snapshot when it is not in memory.
func (m *Manager) Get(ctx context.Context, id string) (View, error) {
	sess, err := m.session(ctx, id)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// Close discards the session and its cart. A session in the middle of a
// checkout cannot be closed.
func (m *Manager) Close(ctx context.Context, id string) error {
	sess, err := m.session(ctx, id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.cart.CheckoutPending() {
		return cart.ErrCheckoutInProgress
	}
	sess.closed = true

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if m.snapshots != nil {
		if err := m.snapshots.Delete(ctx, id); err != nil {
			m.logg.Error(m.logg.WithSessionID(ctx, id), "session.snapshot_delete_failed", err)
		}
	}
	m.logg.Info(m.logg.WithSessionID(ctx, id), "session.closed")
	return nil
}

func (m *Manager) AddItem(ctx context.Context, id string, productID uuid.UUID, unitName string) (View, error) {
	return m.mutate(ctx, id, func(c *cart.Cart) error {
		return c.AddToCart(productID, unitName)
	})
}

func (m *Manager) UpdateItem(ctx context.Context, id string, productID uuid.UUID, unitName string, delta float64) (View, error) {
	return m.mutate(ctx, id, func(c *cart.Cart) error {
		return c.UpdateQuantity(productID, unitName, delta)
	})
}

func (m *Manager) SetItem(ctx context.Context, id string, productID uuid.UUID, unitName string, quantity float64) (View, error) {
	return m.mutate(ctx, id, func(c *cart.Cart) error {
		return c.SetQuantity(productID, unitName, quantity)
	})
}

func (m *Manager) RemoveItem(ctx context.Context, id string, productID uuid.UUID, unitName string) (View, error) {
	return m.mutate(ctx, id, func(c *cart.Cart) error {
		_, err := c.RemoveLine(productID, unitName)
		return err
	})
}

// Checkout submits the session's cart. The session lock is released while the
// sink is called; the cart stays frozen until the sink answers.
func (m *Manager) Checkout(ctx context.Context, id string, req checkout.Request) (checkout.Result, error) {
	sess, err := m.session(ctx, id)
	if err != nil {
		return checkout.Result{}, err
	}
	ctx = m.logg.WithCashierID(m.logg.WithSessionID(ctx, sess.ID), sess.CashierID)

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return checkout.Result{}, ErrSessionNotFound
	}
	req.SessionID = sess.ID
	req.CashierID = sess.CashierID
	payload, err := m.checkout.Prepare(sess.cart, req)
	sess.mu.Unlock()
	if err != nil {
		return checkout.Result{}, err
	}

	res, submitErr := m.checkout.Submit(ctx, payload)

	sess.mu.Lock()
	m.checkout.Complete(sess.cart, submitErr)
	m.persist(ctx, sess)
	sess.mu.Unlock()

	return res, submitErr
}

// RestoreAll resumes every session that has a snapshot. It returns how many
// sessions were restored.
func (m *Manager) RestoreAll(ctx context.Context) (int, error) {
	if m.snapshots == nil {
		return 0, nil
	}
	ids, err := m.snapshots.List(ctx)
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, id := range ids {
		if _, err := m.session(ctx, id); err != nil {
			m.logg.Error(m.logg.WithSessionID(ctx, id), "session.restore_failed", err)
			continue
		}
		restored++
	}
	return restored, nil
}

// Len reports how many sessions are held in memory.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) mutate(ctx context.Context, id string, fn func(*cart.Cart) error) (View, error) {
	sess, err := m.session(ctx, id)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return View{}, ErrSessionNotFound
	}
	if err := fn(sess.cart); err != nil {
		return View{}, err
	}
	m.persist(ctx, sess)
	return sess.view(), nil
}

func (m *Manager) session(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return sess, nil
	}
	if m.snapshots == nil {
		return nil, ErrSessionNotFound
	}

	snap, found, err := m.snapshots.Load(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session snapshot")
	}
	if !found {
		return nil, ErrSessionNotFound
	}

	restored := m.restore(ctx, snap)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		return existing, nil
	}
	m.sessions[id] = restored
	return restored, nil
}

// restore rebuilds a cart from a snapshot, pricing every line against the
// current catalog. Lines whose product or unit is gone are dropped.
func (m *Manager) restore(ctx context.Context, snap Snapshot) *Session {
	sess := &Session{
		ID:        snap.SessionID,
		CashierID: snap.CashierID,
		OpenedAt:  snap.OpenedAt,
		cart:      cart.New(m.catalog),
	}
	ctx = m.logg.WithSessionID(ctx, snap.SessionID)
	dropped := 0
	for _, line := range snap.Lines {
		if err := m.restoreLine(sess.cart, line); err != nil {
			dropped++
			m.logg.Warn(m.logg.WithFields(ctx, map[string]any{
				"product_id": line.ProductID.String(),
				"unit":       line.UnitName,
				"error":      err.Error(),
			}), "session.restore_line_dropped")
		}
	}
	m.logg.Info(m.logg.WithFields(ctx, map[string]any{
		"lines":   sess.cart.Len(),
		"dropped": dropped,
	}), "session.restored")
	return sess
}

// restoreLine only accepts units the product still sells under the same name.
// Falling back to the base unit would overwrite a base line restored earlier.
func (m *Manager) restoreLine(c *cart.Cart, line SnapshotLine) error {
	if p, ok := m.catalog.Lookup(line.ProductID); ok && p.UnitIndex(line.UnitName) < 0 {
		return fmt.Errorf("unit %q is no longer sold for %s", line.UnitName, p.Name)
	}
	return c.SetQuantityDecimal(line.ProductID, line.UnitName, line.Quantity)
}

// persist writes the session snapshot. Failures are logged; the in-memory cart
// stays authoritative. Callers hold sess.mu.
func (m *Manager) persist(ctx context.Context, sess *Session) {
	if m.snapshots == nil {
		return
	}
	if err := m.snapshots.Save(ctx, sess.snapshot()); err != nil {
		m.logg.Error(m.logg.WithSessionID(ctx, sess.ID), "session.snapshot_save_failed", err)
	}
}

func (s *Session) snapshot() Snapshot {
	lines := make([]SnapshotLine, 0, s.cart.Len())
	for lv := range s.cart.Lines() {
		lines = append(lines, SnapshotLine{
			ProductID: lv.ProductID,
			UnitName:  lv.UnitName,
			Quantity:  lv.Quantity,
		})
	}
	return Snapshot{
		SessionID: s.ID,
		CashierID: s.CashierID,
		OpenedAt:  s.OpenedAt,
		Lines:     lines,
		SavedAt:   time.Now().UTC(),
	}
}

func (s *Session) view() View {
	lines := make([]cart.LineView, 0, s.cart.Len())
	for lv := range s.cart.Lines() {
		lines = append(lines, lv)
	}
	return View{
		SessionID:       s.ID,
		CashierID:       s.CashierID,
		OpenedAt:        s.OpenedAt,
		Lines:           lines,
		Totals:          s.cart.Totals(),
		CheckoutPending: s.cart.CheckoutPending(),
	}
}
