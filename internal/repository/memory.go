package repository

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"pharmacy-service/internal/model"
	"pharmacy-service/pkg/query"
)

// MemoryStore keeps every table in maps behind one RWMutex.
// A transaction holds the write lock and restores a snapshot when fn fails.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   map[string]uint
	users    map[uint]model.User
	products map[uint]model.Product
	orders   map[uint]model.Order
	payments map[uint]model.Payment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   map[string]uint{},
		users:    map[uint]model.User{},
		products: map[uint]model.Product{},
		orders:   map[uint]model.Order{},
		payments: map[uint]model.Payment{},
	}
}

// NewMemoryRepositories builds repositories over a fresh in-memory store
func NewMemoryRepositories() *Repositories {
	return NewMemoryStore().Repositories()
}

// Repositories exposes the store through the repository interfaces
func (m *MemoryStore) Repositories() *Repositories {
	return &Repositories{
		Users:    &MemoryUsers{m},
		Products: &MemoryProducts{m},
		Orders:   &MemoryOrders{m},
		Payments: &MemoryPayments{m},
		Tx:       &MemoryTx{m},
	}
}

type memTxKey struct{}

func isTx(ctx context.Context) bool {
	b, ok := ctx.Value(memTxKey{}).(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

func (m *MemoryStore) next(table string) uint {
	m.nextID[table]++
	return m.nextID[table]
}

type memorySnapshot struct {
	nextID   map[string]uint
	users    map[uint]model.User
	products map[uint]model.Product
	orders   map[uint]model.Order
	payments map[uint]model.Payment
}

func (m *MemoryStore) snapshot() memorySnapshot {
	s := memorySnapshot{
		nextID:   maps.Clone(m.nextID),
		users:    maps.Clone(m.users),
		products: maps.Clone(m.products),
		orders:   make(map[uint]model.Order, len(m.orders)),
		payments: make(map[uint]model.Payment, len(m.payments)),
	}
	for id, o := range m.orders {
		s.orders[id] = cloneOrder(o)
	}
	for id, p := range m.payments {
		s.payments[id] = clonePayment(p)
	}
	return s
}

func (m *MemoryStore) restore(s memorySnapshot) {
	m.nextID = s.nextID
	m.users = s.users
	m.products = s.products
	m.orders = s.orders
	m.payments = s.payments
}

func cloneOrder(o model.Order) model.Order {
	o.Products = slices.Clone(o.Products)
	return o
}

func clonePayment(p model.Payment) model.Payment {
	p.PaymentGatewayData = maps.Clone(p.PaymentGatewayData)
	p.Order = nil
	return p
}

func stamp(createdAt, updatedAt *time.Time) {
	now := time.Now()
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}

// sortRows orders rows by the requested sort keys, then by fallback
func sortRows[T any](rows []T, sorts []query.SortField, cmps map[string]func(a, b T) int, fallback func(a, b T) int) {
	slices.SortStableFunc(rows, func(a, b T) int {
		for _, s := range sorts {
			compare, ok := cmps[s.Field]
			if !ok {
				continue
			}
			if c := compare(a, b); c != 0 {
				if s.Desc {
					return -c
				}
				return c
			}
		}
		return fallback(a, b)
	})
}

func paginate[T any](rows []T, p query.Params) []T {
	start, end := query.Window(len(rows), p)
	return rows[start:end]
}

func newestFirst(aCreated, bCreated time.Time, aID, bID uint) int {
	if c := bCreated.Compare(aCreated); c != 0 {
		return c
	}
	return cmp.Compare(bID, aID)
}

func matchesFilters(filters map[string]string, values map[string]string) bool {
	for key, filter := range filters {
		actual, ok := values[key]
		if !ok {
			continue
		}
		if !query.MatchesFilter(filter, actual) {
			return false
		}
	}
	return true
}

// MemoryTx emulates transactions with the store write lock and a snapshot
type MemoryTx struct{ store *MemoryStore }

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if isTx(ctx) {
		return fn(ctx)
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	snap := tx.store.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		tx.store.restore(snap)
		return err
	}
	return nil
}

// MemoryUsers implements UserRepository
type MemoryUsers struct{ store *MemoryStore }

func (r *MemoryUsers) Create(ctx context.Context, u *model.User) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	for _, existing := range r.store.users {
		if existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	if err := u.BeforeSave(nil); err != nil {
		return err
	}
	if u.Role == "" {
		u.Role = model.RoleCustomer
	}
	if u.Status == "" {
		u.Status = model.UserStatusActive
	}
	u.ID = r.store.next("users")
	stamp(&u.CreatedAt, &u.UpdatedAt)
	r.store.users[u.ID] = *u
	return nil
}

func (r *MemoryUsers) FindByID(ctx context.Context, id uint) (*model.User, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	u, ok := r.store.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *MemoryUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	for _, u := range r.store.users {
		if u.Email == email && !u.IsDeleted {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	for _, u := range r.store.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryUsers) Update(ctx context.Context, u *model.User) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	if _, ok := r.store.users[u.ID]; !ok {
		return ErrNotFound
	}
	if err := u.BeforeSave(nil); err != nil {
		return err
	}
	stamp(&u.CreatedAt, &u.UpdatedAt)
	r.store.users[u.ID] = *u
	return nil
}

func (r *MemoryUsers) List(ctx context.Context, p query.Params) ([]model.User, int64, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	out := make([]model.User, 0)
	for _, u := range r.store.users {
		if u.IsDeleted || !query.MatchesSearch(p.SearchTerm, u.Name, u.Email) {
			continue
		}
		if !matchesFilters(p.Filters, map[string]string{
			"role":       string(u.Role),
			"status":     string(u.Status),
			"is_blocked": strconv.FormatBool(u.IsBlocked),
		}) {
			continue
		}
		out = append(out, u)
	}
	sortRows(out, p.Sort, map[string]func(a, b model.User) int{
		"name":       func(a, b model.User) int { return cmp.Compare(a.Name, b.Name) },
		"email":      func(a, b model.User) int { return cmp.Compare(a.Email, b.Email) },
		"created_at": func(a, b model.User) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}, func(a, b model.User) int { return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID) })
	return paginate(out, p), int64(len(out)), nil
}

func (r *MemoryUsers) CountByRole(ctx context.Context, role model.Role) (int64, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	var count int64
	for _, u := range r.store.users {
		if u.Role == role && !u.IsDeleted {
			count++
		}
	}
	return count, nil
}

// MemoryProducts implements ProductRepository
type MemoryProducts struct{ store *MemoryStore }

func (r *MemoryProducts) Create(ctx context.Context, p *model.Product) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	if err := p.BeforeSave(nil); err != nil {
		return err
	}
	p.ID = r.store.next("products")
	stamp(&p.CreatedAt, &p.UpdatedAt)
	r.store.products[p.ID] = *p
	return nil
}

func (r *MemoryProducts) FindByID(ctx context.Context, id uint) (*model.Product, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	p, ok := r.store.products[id]
	if !ok || p.IsDeleted {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *MemoryProducts) FindByIDs(ctx context.Context, ids []uint) ([]model.Product, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	out := make([]model.Product, 0, len(ids))
	seen := map[uint]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := r.store.products[id]; ok && !p.IsDeleted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MemoryProducts) Update(ctx context.Context, p *model.Product) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	if _, ok := r.store.products[p.ID]; !ok {
		return ErrNotFound
	}
	if err := p.BeforeSave(nil); err != nil {
		return err
	}
	stamp(&p.CreatedAt, &p.UpdatedAt)
	r.store.products[p.ID] = *p
	return nil
}

func (r *MemoryProducts) SoftDelete(ctx context.Context, id uint) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	p, ok := r.store.products[id]
	if !ok || p.IsDeleted {
		return ErrNotFound
	}
	p.IsDeleted = true
	p.UpdatedAt = time.Now()
	r.store.products[id] = p
	return nil
}

func (r *MemoryProducts) List(ctx context.Context, p query.Params) ([]model.Product, int64, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	out := make([]model.Product, 0)
	for _, prod := range r.store.products {
		if prod.IsDeleted || !query.MatchesSearch(p.SearchTerm, prod.Name, prod.Category, prod.Manufacturer) {
			continue
		}
		if !matchesFilters(p.Filters, map[string]string{
			"category":              prod.Category,
			"requires_prescription": strconv.FormatBool(prod.RequiresPrescription),
			"in_stock":              strconv.FormatBool(prod.InStock),
			"manufacturer":          prod.Manufacturer,
		}) {
			continue
		}
		out = append(out, prod)
	}
	sortRows(out, p.Sort, map[string]func(a, b model.Product) int{
		"name":       func(a, b model.Product) int { return cmp.Compare(a.Name, b.Name) },
		"price":      func(a, b model.Product) int { return cmp.Compare(a.Price, b.Price) },
		"stock":      func(a, b model.Product) int { return cmp.Compare(a.Stock, b.Stock) },
		"created_at": func(a, b model.Product) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"expiry_date": func(a, b model.Product) int {
			return compareExpiry(a.ExpiryDate, b.ExpiryDate)
		},
	}, func(a, b model.Product) int { return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID) })
	return paginate(out, p), int64(len(out)), nil
}

func compareExpiry(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

func (r *MemoryProducts) DecrementStock(ctx context.Context, id uint, qty int) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	p, ok := r.store.products[id]
	if !ok || p.IsDeleted || p.Stock < qty {
		return ErrInsufficientStock
	}
	p.Stock -= qty
	p.SyncInStock()
	p.UpdatedAt = time.Now()
	r.store.products[id] = p
	return nil
}

func (r *MemoryProducts) IncrementStock(ctx context.Context, id uint, qty int) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	p, ok := r.store.products[id]
	if !ok {
		return ErrNotFound
	}
	p.Stock += qty
	p.SyncInStock()
	p.UpdatedAt = time.Now()
	r.store.products[id] = p
	return nil
}

func (r *MemoryProducts) Count(ctx context.Context) (int64, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	var count int64
	for _, p := range r.store.products {
		if !p.IsDeleted {
			count++
		}
	}
	return count, nil
}

func (r *MemoryProducts) LowStock(ctx context.Context, threshold, limit int) ([]model.Product, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	out := make([]model.Product, 0)
	for _, p := range r.store.products {
		if !p.IsDeleted && p.Stock < threshold {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b model.Product) int {
		if c := cmp.Compare(a.Stock, b.Stock); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryProducts) Expiring(ctx context.Context, now, before time.Time, limit int) ([]model.Product, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	out := make([]model.Product, 0)
	for _, p := range r.store.products {
		if p.IsDeleted || p.ExpiryDate == nil {
			continue
		}
		if p.ExpiryDate.Before(now) || p.ExpiryDate.After(before) {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b model.Product) int {
		if c := compareExpiry(a.ExpiryDate, b.ExpiryDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemoryOrders implements OrderRepository
type MemoryOrders struct{ store *MemoryStore }

func (r *MemoryOrders) Create(ctx context.Context, o *model.Order) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	for _, existing := range r.store.orders {
		if existing.OrderID == o.OrderID {
			return ErrDuplicate
		}
	}
	o.ID = r.store.next("orders")
	stamp(&o.CreatedAt, &o.UpdatedAt)
	r.store.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *MemoryOrders) FindByID(ctx context.Context, id uint) (*model.Order, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	o, ok := r.store.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

// FindByIDForUpdate needs no row lock here: a transaction holds the store's write lock.
func (r *MemoryOrders) FindByIDForUpdate(ctx context.Context, id uint) (*model.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *MemoryOrders) FindByIDForCustomer(ctx context.Context, id, customerID uint) (*model.Order, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	o, ok := r.store.orders[id]
	if !ok || o.CustomerID != customerID {
		return nil, ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r *MemoryOrders) ListByCustomer(ctx context.Context, customerID uint) ([]model.Order, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	out := make([]model.Order, 0)
	for _, o := range r.store.orders {
		if o.CustomerID == customerID {
			out = append(out, cloneOrder(o))
		}
	}
	slices.SortFunc(out, func(a, b model.Order) int { return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID) })
	return out, nil
}

func (r *MemoryOrders) List(ctx context.Context, p query.Params) ([]model.Order, int64, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	out := make([]model.Order, 0)
	for _, o := range r.store.orders {
		if !query.MatchesSearch(p.SearchTerm, o.OrderID, o.CustomerName, o.CustomerEmail, o.CustomerPhone) {
			continue
		}
		if !matchesFilters(p.Filters, map[string]string{
			"order_status":   string(o.OrderStatus),
			"payment_status": string(o.PaymentStatus),
			"payment_method": string(o.PaymentMethod),
			"customer_id":    strconv.FormatUint(uint64(o.CustomerID), 10),
		}) {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sortRows(out, p.Sort, map[string]func(a, b model.Order) int{
		"created_at":   func(a, b model.Order) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"grand_total":  func(a, b model.Order) int { return cmp.Compare(a.GrandTotal, b.GrandTotal) },
		"order_status": func(a, b model.Order) int { return cmp.Compare(a.OrderStatus, b.OrderStatus) },
		"order_id":     func(a, b model.Order) int { return cmp.Compare(a.OrderID, b.OrderID) },
	}, func(a, b model.Order) int { return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID) })
	return paginate(out, p), int64(len(out)), nil
}

func (r *MemoryOrders) Update(ctx context.Context, o *model.Order) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	if _, ok := r.store.orders[o.ID]; !ok {
		return ErrNotFound
	}
	stamp(&o.CreatedAt, &o.UpdatedAt)
	r.store.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *MemoryOrders) Count(ctx context.Context) (int64, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	return int64(len(r.store.orders)), nil
}

func (r *MemoryOrders) CountByStatus(ctx context.Context) (map[model.OrderStatus]int64, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	counts := make(map[model.OrderStatus]int64, len(model.OrderStatuses))
	for _, s := range model.OrderStatuses {
		counts[s] = 0
	}
	for _, o := range r.store.orders {
		counts[o.OrderStatus]++
	}
	return counts, nil
}

func (r *MemoryOrders) Recent(ctx context.Context, limit int) ([]model.Order, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	out := make([]model.Order, 0, len(r.store.orders))
	for _, o := range r.store.orders {
		out = append(out, cloneOrder(o))
	}
	slices.SortFunc(out, func(a, b model.Order) int { return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemoryPayments implements PaymentRepository
type MemoryPayments struct{ store *MemoryStore }

func (r *MemoryPayments) Create(ctx context.Context, p *model.Payment) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	for _, existing := range r.store.payments {
		if existing.OrderID == p.OrderID || existing.TransactionID == p.TransactionID {
			return ErrDuplicate
		}
	}
	p.ID = r.store.next("payments")
	stamp(&p.CreatedAt, &p.UpdatedAt)
	r.store.payments[p.ID] = clonePayment(*p)
	return nil
}

func (r *MemoryPayments) FindByOrderID(ctx context.Context, orderID uint) (*model.Payment, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	for _, p := range r.store.payments {
		if p.OrderID == orderID {
			p = clonePayment(p)
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryPayments) Update(ctx context.Context, p *model.Payment) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	if _, ok := r.store.payments[p.ID]; !ok {
		return ErrNotFound
	}
	stamp(&p.CreatedAt, &p.UpdatedAt)
	r.store.payments[p.ID] = clonePayment(*p)
	return nil
}

func (r *MemoryPayments) SumPaid(ctx context.Context) (float64, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	var total float64
	for _, p := range r.store.payments {
		if p.PaymentStatus == model.PaymentPaid {
			total += p.Amount
		}
	}
	return total, nil
}

func (r *MemoryPayments) MonthlyPaid(ctx context.Context, since time.Time) ([]MonthlyRevenue, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	byMonth := map[string]*MonthlyRevenue{}
	for _, p := range r.store.payments {
		if p.PaymentStatus != model.PaymentPaid || p.CreatedAt.Before(since) {
			continue
		}
		month := p.CreatedAt.Format("2006-01")
		row, ok := byMonth[month]
		if !ok {
			row = &MonthlyRevenue{Month: month}
			byMonth[month] = row
		}
		row.Revenue += p.Amount
		row.Orders++
	}
	out := make([]MonthlyRevenue, 0, len(byMonth))
	for _, month := range slices.Sorted(maps.Keys(byMonth)) {
		out = append(out, *byMonth[month])
	}
	return out, nil
}
