package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pharmacy-service/internal/model"
	"pharmacy-service/pkg/query"
	"pharmacy-service/prometheus"
)

type gormTxKey struct{}

// gormBase resolves the connection for a call: the transaction carried by
// ctx when there is one, the root handle otherwise.
type gormBase struct {
	db *gorm.DB
}

func (b gormBase) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok {
		return tx
	}
	return b.db.WithContext(ctx)
}

// NewGormRepositories builds postgres-backed repositories sharing db
func NewGormRepositories(db *gorm.DB) *Repositories {
	base := gormBase{db: db}
	return &Repositories{
		Users:    &GormUserRepository{base},
		Products: &GormProductRepository{base},
		Orders:   &GormOrderRepository{base},
		Payments: &GormPaymentRepository{base},
		Tx:       &GormTxManager{base},
	}
}

// GormTxManager maps WithTransaction onto gorm.DB.Transaction
type GormTxManager struct{ gormBase }

func (m *GormTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, gormTxKey{}, tx))
	})
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

func limitOrAll(db *gorm.DB, limit int) *gorm.DB {
	if limit > 0 {
		return db.Limit(limit)
	}
	return db
}

// GormUserRepository persists users
type GormUserRepository struct{ gormBase }

func (r *GormUserRepository) Create(ctx context.Context, u *model.User) error {
	defer prometheus.TrackDBOperation("create_user")(time.Now())
	return translate(r.conn(ctx).Create(u).Error)
}

func (r *GormUserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	defer prometheus.TrackDBOperation("find_user")(time.Now())
	var u model.User
	if err := r.conn(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	defer prometheus.TrackDBOperation("find_user_by_email")(time.Now())
	var u model.User
	if err := r.conn(ctx).Where("email = ? AND is_deleted = ?", email, false).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *GormUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	defer prometheus.TrackDBOperation("count_user_by_email")(time.Now())
	var count int64
	if err := r.conn(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormUserRepository) Update(ctx context.Context, u *model.User) error {
	defer prometheus.TrackDBOperation("update_user")(time.Now())
	return translate(r.conn(ctx).Save(u).Error)
}

func (r *GormUserRepository) List(ctx context.Context, p query.Params) ([]model.User, int64, error) {
	defer prometheus.TrackDBOperation("list_users")(time.Now())
	q := query.Filter(r.conn(ctx).Model(&model.User{}).Where("is_deleted = ?", false), p, userSchema).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []model.User
	if err := query.Shape(q, p, userSchema).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *GormUserRepository) CountByRole(ctx context.Context, role model.Role) (int64, error) {
	defer prometheus.TrackDBOperation("count_users")(time.Now())
	var count int64
	err := r.conn(ctx).Model(&model.User{}).
		Where("role = ? AND is_deleted = ?", role, false).
		Count(&count).Error
	return count, err
}

// GormProductRepository persists catalog items
type GormProductRepository struct{ gormBase }

func (r *GormProductRepository) Create(ctx context.Context, p *model.Product) error {
	defer prometheus.TrackDBOperation("create_product")(time.Now())
	return translate(r.conn(ctx).Create(p).Error)
}

func (r *GormProductRepository) FindByID(ctx context.Context, id uint) (*model.Product, error) {
	defer prometheus.TrackDBOperation("find_product")(time.Now())
	var p model.Product
	if err := r.conn(ctx).Where("is_deleted = ?", false).First(&p, id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.Product, error) {
	defer prometheus.TrackDBOperation("find_products")(time.Now())
	var products []model.Product
	if len(ids) == 0 {
		return products, nil
	}
	err := r.conn(ctx).Where("id IN ? AND is_deleted = ?", ids, false).Find(&products).Error
	return products, err
}

func (r *GormProductRepository) Update(ctx context.Context, p *model.Product) error {
	defer prometheus.TrackDBOperation("update_product")(time.Now())
	return translate(r.conn(ctx).Save(p).Error)
}

func (r *GormProductRepository) SoftDelete(ctx context.Context, id uint) error {
	defer prometheus.TrackDBOperation("delete_product")(time.Now())
	res := r.conn(ctx).Model(&model.Product{}).
		Where("id = ? AND is_deleted = ?", id, false).
		UpdateColumns(map[string]interface{}{"is_deleted": true, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormProductRepository) List(ctx context.Context, p query.Params) ([]model.Product, int64, error) {
	defer prometheus.TrackDBOperation("list_products")(time.Now())
	q := query.Filter(r.conn(ctx).Model(&model.Product{}).Where("is_deleted = ?", false), p, productSchema).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var products []model.Product
	if err := query.Shape(q, p, productSchema).Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// DecrementStock is a single conditional UPDATE, so concurrent orders cannot oversell.
func (r *GormProductRepository) DecrementStock(ctx context.Context, id uint, qty int) error {
	defer prometheus.TrackDBOperation("decrement_stock")(time.Now())
	res := r.conn(ctx).Model(&model.Product{}).
		Where("id = ? AND is_deleted = ? AND stock >= ?", id, false, qty).
		UpdateColumns(map[string]interface{}{
			"stock":      gorm.Expr("stock - ?", qty),
			"in_stock":   gorm.Expr("stock - ? > 0", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *GormProductRepository) IncrementStock(ctx context.Context, id uint, qty int) error {
	defer prometheus.TrackDBOperation("increment_stock")(time.Now())
	res := r.conn(ctx).Model(&model.Product{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"stock":      gorm.Expr("stock + ?", qty),
			"in_stock":   gorm.Expr("stock + ? > 0", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormProductRepository) Count(ctx context.Context) (int64, error) {
	defer prometheus.TrackDBOperation("count_products")(time.Now())
	var count int64
	err := r.conn(ctx).Model(&model.Product{}).Where("is_deleted = ?", false).Count(&count).Error
	return count, err
}

func (r *GormProductRepository) LowStock(ctx context.Context, threshold, limit int) ([]model.Product, error) {
	defer prometheus.TrackDBOperation("low_stock_products")(time.Now())
	var products []model.Product
	q := r.conn(ctx).Where("is_deleted = ? AND stock < ?", false, threshold).Order("stock ASC, id ASC")
	err := limitOrAll(q, limit).Find(&products).Error
	return products, err
}

func (r *GormProductRepository) Expiring(ctx context.Context, now, before time.Time, limit int) ([]model.Product, error) {
	defer prometheus.TrackDBOperation("expiring_products")(time.Now())
	var products []model.Product
	q := r.conn(ctx).
		Where("is_deleted = ? AND expiry_date IS NOT NULL AND expiry_date >= ? AND expiry_date <= ?", false, now, before).
		Order("expiry_date ASC, id ASC")
	err := limitOrAll(q, limit).Find(&products).Error
	return products, err
}

// GormOrderRepository persists orders
type GormOrderRepository struct{ gormBase }

func (r *GormOrderRepository) Create(ctx context.Context, o *model.Order) error {
	defer prometheus.TrackDBOperation("create_order")(time.Now())
	return translate(r.conn(ctx).Create(o).Error)
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uint) (*model.Order, error) {
	defer prometheus.TrackDBOperation("find_order")(time.Now())
	var o model.Order
	if err := r.conn(ctx).First(&o, id).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *GormOrderRepository) FindByIDForUpdate(ctx context.Context, id uint) (*model.Order, error) {
	defer prometheus.TrackDBOperation("find_order_for_update")(time.Now())
	var o model.Order
	if err := r.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, id).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *GormOrderRepository) FindByIDForCustomer(ctx context.Context, id, customerID uint) (*model.Order, error) {
	defer prometheus.TrackDBOperation("find_customer_order")(time.Now())
	var o model.Order
	if err := r.conn(ctx).Where("customer_id = ?", customerID).First(&o, id).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *GormOrderRepository) ListByCustomer(ctx context.Context, customerID uint) ([]model.Order, error) {
	defer prometheus.TrackDBOperation("list_customer_orders")(time.Now())
	var orders []model.Order
	err := r.conn(ctx).Where("customer_id = ?", customerID).Order("created_at DESC, id DESC").Find(&orders).Error
	return orders, err
}

func (r *GormOrderRepository) List(ctx context.Context, p query.Params) ([]model.Order, int64, error) {
	defer prometheus.TrackDBOperation("list_orders")(time.Now())
	q := query.Filter(r.conn(ctx).Model(&model.Order{}), p, orderSchema).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var orders []model.Order
	if err := query.Shape(q, p, orderSchema).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *GormOrderRepository) Update(ctx context.Context, o *model.Order) error {
	defer prometheus.TrackDBOperation("update_order")(time.Now())
	return translate(r.conn(ctx).Save(o).Error)
}

func (r *GormOrderRepository) Count(ctx context.Context) (int64, error) {
	defer prometheus.TrackDBOperation("count_orders")(time.Now())
	var count int64
	err := r.conn(ctx).Model(&model.Order{}).Count(&count).Error
	return count, err
}

func (r *GormOrderRepository) CountByStatus(ctx context.Context) (map[model.OrderStatus]int64, error) {
	defer prometheus.TrackDBOperation("count_orders_by_status")(time.Now())
	var rows []struct {
		OrderStatus model.OrderStatus
		Count       int64
	}
	err := r.conn(ctx).Model(&model.Order{}).
		Select("order_status, COUNT(*) AS count").
		Group("order_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.OrderStatus]int64, len(model.OrderStatuses))
	for _, s := range model.OrderStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.OrderStatus] = row.Count
	}
	return counts, nil
}

func (r *GormOrderRepository) Recent(ctx context.Context, limit int) ([]model.Order, error) {
	defer prometheus.TrackDBOperation("recent_orders")(time.Now())
	var orders []model.Order
	err := limitOrAll(r.conn(ctx).Order("created_at DESC, id DESC"), limit).Find(&orders).Error
	return orders, err
}

// GormPaymentRepository persists payments
type GormPaymentRepository struct{ gormBase }

func (r *GormPaymentRepository) Create(ctx context.Context, p *model.Payment) error {
	defer prometheus.TrackDBOperation("create_payment")(time.Now())
	return translate(r.conn(ctx).Create(p).Error)
}

func (r *GormPaymentRepository) FindByOrderID(ctx context.Context, orderID uint) (*model.Payment, error) {
	defer prometheus.TrackDBOperation("find_payment")(time.Now())
	var p model.Payment
	if err := r.conn(ctx).Where("order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *GormPaymentRepository) Update(ctx context.Context, p *model.Payment) error {
	defer prometheus.TrackDBOperation("update_payment")(time.Now())
	return translate(r.conn(ctx).Save(p).Error)
}

func (r *GormPaymentRepository) SumPaid(ctx context.Context) (float64, error) {
	defer prometheus.TrackDBOperation("sum_paid")(time.Now())
	var total float64
	err := r.conn(ctx).Model(&model.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("payment_status = ?", model.PaymentPaid).
		Scan(&total).Error
	return total, err
}

func (r *GormPaymentRepository) MonthlyPaid(ctx context.Context, since time.Time) ([]MonthlyRevenue, error) {
	defer prometheus.TrackDBOperation("monthly_paid")(time.Now())
	var rows []MonthlyRevenue
	err := r.conn(ctx).Model(&model.Payment{}).
		Select("to_char(date_trunc('month', created_at), 'YYYY-MM') AS month, SUM(amount) AS revenue, COUNT(*) AS orders").
		Where("payment_status = ? AND created_at >= ?", model.PaymentPaid, since).
		Group("month").
		Order("month ASC").
		Scan(&rows).Error
	return rows, err
}
