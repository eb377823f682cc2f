package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pharmacy-service/internal/model"
	"pharmacy-service/internal/repository"
	"pharmacy-service/pkg/apperror"
	"pharmacy-service/pkg/query"
)

type fakeUploader struct {
	keys    []string
	deleted []string
	err     error
}

func (f *fakeUploader) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	f.keys = append(f.keys, key)
	return "https://cdn.test/" + key, nil
}

func (f *fakeUploader) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

type failingPayments struct {
	repository.PaymentRepository
	err error
}

func (f failingPayments) Create(ctx context.Context, p *model.Payment) error { return f.err }

type lockCountingOrders struct {
	repository.OrderRepository
	locked int
}

func (o *lockCountingOrders) FindByIDForUpdate(ctx context.Context, id uint) (*model.Order, error) {
	o.locked++
	return o.OrderRepository.FindByIDForUpdate(ctx, id)
}

type orderFixture struct {
	repos    *repository.Repositories
	svc      *OrderService
	uploader *fakeUploader
	customer *model.User
	napa     *model.Product // 20% off, no prescription
	amox     *model.Product // prescription only
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	ctx := context.Background()
	repos := repository.NewMemoryRepositories()

	customer := &model.User{Name: "Rahim", Email: "rahim@example.com", Password: "secret12", Role: model.RoleCustomer, Status: model.UserStatusActive}
	require.NoError(t, repos.Users.Create(ctx, customer))

	napa := &model.Product{Name: "Napa", Price: 100, Discount: 20, DiscountType: model.DiscountPercentage, Stock: 10}
	require.NoError(t, repos.Products.Create(ctx, napa))
	amox := &model.Product{Name: "Amoxicillin", Price: 600, DiscountType: model.DiscountFlat, Stock: 5, RequiresPrescription: true}
	require.NoError(t, repos.Products.Create(ctx, amox))

	uploader := &fakeUploader{}
	return &orderFixture{
		repos:    repos,
		svc:      NewOrderService(repos, uploader, zap.NewNop()),
		uploader: uploader,
		customer: customer,
		napa:     napa,
		amox:     amox,
	}
}

func (f *orderFixture) stock(t *testing.T, id uint) int {
	t.Helper()
	p, err := f.repos.Products.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *orderFixture) orderCount(t *testing.T) int64 {
	t.Helper()
	n, err := f.repos.Orders.Count(context.Background())
	require.NoError(t, err)
	return n
}

func prescription() *PrescriptionFile {
	return &PrescriptionFile{Filename: "rx.PDF", ContentType: "application/pdf", Content: strings.NewReader("scan")}
}

func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, status, apperror.StatusOf(err), err.Error())
}

func TestCreateOrder_COD(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	order, err := f.svc.Create(ctx, f.customer.ID, CreateOrderInput{
		Products:      []OrderItemInput{{ProductID: f.napa.ID, Quantity: 3}},
		CustomerName:  "Rahim",
		PaymentMethod: model.PaymentCOD,
	})
	require.NoError(t, err)

	assert.Regexp(t, `^[A-Z0-9]{6}$`, order.OrderID)
	assert.Regexp(t, `^TRX-[A-Z0-9]{10}$`, order.TransactionID)
	assert.Equal(t, 240.0, order.Subtotal)
	assert.Equal(t, 50.0, order.DeliveryCharge)
	assert.Equal(t, 290.0, order.GrandTotal)
	assert.Equal(t, model.OrderPlaced, order.OrderStatus)
	assert.Equal(t, model.PaymentPending, order.PaymentStatus)
	require.Len(t, order.Products, 1)
	assert.Equal(t, "Napa", order.Products[0].Name)
	assert.Equal(t, 7, f.stock(t, f.napa.ID))

	payment, err := f.repos.Payments.FindByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, payment.PaymentStatus)
	assert.Equal(t, order.TransactionID, payment.TransactionID)
	assert.Equal(t, 290.0, payment.Amount)
	assert.Empty(t, f.uploader.keys)
}

func TestCreateOrder_MergesDuplicateLines(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.svc.Create(context.Background(), f.customer.ID, CreateOrderInput{
		Products:      []OrderItemInput{{ProductID: f.napa.ID, Quantity: 2}, {ProductID: f.napa.ID, Quantity: 3}},
		PaymentMethod: model.PaymentCOD,
	})
	require.NoError(t, err)
	require.Len(t, order.Products, 1)
	assert.Equal(t, 5, order.Products[0].Quantity)
	assert.Equal(t, 5, f.stock(t, f.napa.ID))
}

func TestCreateOrder_PrescriptionGate(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	in := CreateOrderInput{
		Products:      []OrderItemInput{{ProductID: f.amox.ID, Quantity: 2}},
		PaymentMethod: model.PaymentOnline,
	}

	_, err := f.svc.Create(ctx, f.customer.ID, in)
	assertStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, int64(0), f.orderCount(t))
	assert.Equal(t, 5, f.stock(t, f.amox.ID))

	in.Prescription = prescription()
	order, err := f.svc.Create(ctx, f.customer.ID, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"prescriptions/" + order.OrderID + ".pdf"}, f.uploader.keys)
	assert.Equal(t, "https://cdn.test/prescriptions/"+order.OrderID+".pdf", order.Prescription)
	assert.Equal(t, 1200.0, order.Subtotal)
	assert.Equal(t, 0.0, order.DeliveryCharge)
	assert.Equal(t, 1200.0, order.GrandTotal)
}

func TestCreateOrder_UploadFailure(t *testing.T) {
	f := newOrderFixture(t)
	f.uploader.err = errors.New("cdn down")

	_, err := f.svc.Create(context.Background(), f.customer.ID, CreateOrderInput{
		Products:      []OrderItemInput{{ProductID: f.amox.ID, Quantity: 1}},
		PaymentMethod: model.PaymentCOD,
		Prescription:  prescription(),
	})
	assertStatus(t, err, http.StatusInternalServerError)
	assert.Equal(t, int64(0), f.orderCount(t))
}

func TestCreateOrder_QuantityAboveStock(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.Create(context.Background(), f.customer.ID, CreateOrderInput{
		Products:      []OrderItemInput{{ProductID: f.napa.ID, Quantity: 1}, {ProductID: f.amox.ID, Quantity: 6}},
		PaymentMethod: model.PaymentCOD,
		Prescription:  prescription(),
	})
	assertStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, int64(0), f.orderCount(t))
	assert.Equal(t, 10, f.stock(t, f.napa.ID))
	assert.Equal(t, 5, f.stock(t, f.amox.ID))
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.Create(context.Background(), f.customer.ID, CreateOrderInput{
		Products:      []OrderItemInput{{ProductID: 999, Quantity: 1}},
		PaymentMethod: model.PaymentCOD,
	})
	assertStatus(t, err, http.StatusNotFound)
}

func TestCreateOrder_InactiveUser(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.customer.IsBlocked = true
	require.NoError(t, f.repos.Users.Update(ctx, f.customer))

	_, err := f.svc.Create(ctx, f.customer.ID, CreateOrderInput{
		Products:      []OrderItemInput{{ProductID: f.napa.ID, Quantity: 1}},
		PaymentMethod: model.PaymentCOD,
	})
	assertStatus(t, err, http.StatusUnauthorized)

	_, err = f.svc.Create(ctx, 404, CreateOrderInput{
		Products:      []OrderItemInput{{ProductID: f.napa.ID, Quantity: 1}},
		PaymentMethod: model.PaymentCOD,
	})
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestCreateOrder_RollsBackOnPaymentFailure(t *testing.T) {
	f := newOrderFixture(t)
	sentinel := errors.New("payments table locked")
	f.repos.Payments = failingPayments{PaymentRepository: f.repos.Payments, err: sentinel}
	svc := NewOrderService(f.repos, f.uploader, zap.NewNop())

	_, err := svc.Create(context.Background(), f.customer.ID, CreateOrderInput{
		Products:      []OrderItemInput{{ProductID: f.napa.ID, Quantity: 4}},
		PaymentMethod: model.PaymentCOD,
	})
	assert.Same(t, sentinel, err)
	assert.Equal(t, int64(0), f.orderCount(t))
	assert.Equal(t, 10, f.stock(t, f.napa.ID))
	assert.Empty(t, f.uploader.deleted)
}

func TestCreateOrder_RollbackRemovesUploadedPrescription(t *testing.T) {
	f := newOrderFixture(t)
	f.repos.Payments = failingPayments{PaymentRepository: f.repos.Payments, err: errors.New("payments table locked")}
	svc := NewOrderService(f.repos, f.uploader, zap.NewNop())

	_, err := svc.Create(context.Background(), f.customer.ID, CreateOrderInput{
		Products:      []OrderItemInput{{ProductID: f.amox.ID, Quantity: 1}},
		PaymentMethod: model.PaymentCOD,
		Prescription:  prescription(),
	})
	require.Error(t, err)
	require.Len(t, f.uploader.keys, 1)
	assert.Equal(t, f.uploader.keys, f.uploader.deleted)
	assert.Equal(t, 5, f.stock(t, f.amox.ID))
}

func TestStatusAndPaymentUpdatesLockTheOrder(t *testing.T) {
	f := newOrderFixture(t)
	order := f.place(t, model.PaymentOnline, OrderItemInput{ProductID: f.napa.ID, Quantity: 1})

	orders := &lockCountingOrders{OrderRepository: f.repos.Orders}
	f.repos.Orders = orders
	svc := NewOrderService(f.repos, f.uploader, zap.NewNop())
	ctx := context.Background()

	_, err := svc.UpdatePaymentStatus(ctx, order.ID, model.PaymentPaid)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, order.ID, model.OrderConfirmed)
	require.NoError(t, err)
	assert.Equal(t, 2, orders.locked)
}

func TestUpdateStatus_ConcurrentCancelRestocksOnce(t *testing.T) {
	f := newOrderFixture(t)
	order := f.place(t, model.PaymentCOD, OrderItemInput{ProductID: f.napa.ID, Quantity: 4})
	require.Equal(t, 6, f.stock(t, f.napa.ID))

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.UpdateStatus(context.Background(), order.ID, model.OrderCancelled)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, http.StatusBadRequest, apperror.StatusOf(err))
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 10, f.stock(t, f.napa.ID))
}

func (f *orderFixture) place(t *testing.T, method model.PaymentMethod, items ...OrderItemInput) *model.Order {
	t.Helper()
	order, err := f.svc.Create(context.Background(), f.customer.ID, CreateOrderInput{
		Products:      items,
		PaymentMethod: method,
		Prescription:  prescription(),
	})
	require.NoError(t, err)
	return order
}

func TestUpdateStatus_CODLifecycle(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.place(t, model.PaymentCOD, OrderItemInput{ProductID: f.napa.ID, Quantity: 1})

	_, err := f.svc.UpdateStatus(ctx, order.ID, model.OrderShipped)
	assertStatus(t, err, http.StatusBadRequest)

	for _, next := range []model.OrderStatus{model.OrderConfirmed, model.OrderShipped, model.OrderDelivered} {
		order, err = f.svc.UpdateStatus(ctx, order.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, order.OrderStatus)
	}
	assert.Equal(t, model.PaymentPaid, order.PaymentStatus)
	payment, err := f.repos.Payments.FindByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, payment.PaymentStatus)

	_, err = f.svc.UpdateStatus(ctx, order.ID, model.OrderCancelled)
	assertStatus(t, err, http.StatusBadRequest)
}

func TestUpdateStatus_OnlineNeedsPaymentBeforeShipping(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.place(t, model.PaymentOnline, OrderItemInput{ProductID: f.napa.ID, Quantity: 1})

	_, err := f.svc.UpdateStatus(ctx, order.ID, model.OrderConfirmed)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, order.ID, model.OrderShipped)
	assertStatus(t, err, http.StatusBadRequest)

	detail, err := f.svc.UpdatePaymentStatus(ctx, order.ID, model.PaymentPaid)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, detail.PaymentStatus)
	assert.Equal(t, model.PaymentPaid, detail.Payment.PaymentStatus)
	assert.Equal(t, "manual", detail.Payment.PaymentGatewayData["source"])

	order, err = f.svc.UpdateStatus(ctx, order.ID, model.OrderShipped)
	require.NoError(t, err)
	assert.Equal(t, model.OrderShipped, order.OrderStatus)

	order, err = f.svc.UpdateStatus(ctx, order.ID, model.OrderDelivered)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, order.PaymentStatus)
}

func TestUpdateStatus_ConfirmNeedsPrescription(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	order := &model.Order{
		OrderID:       "RXLESS",
		CustomerID:    f.customer.ID,
		Products:      []model.OrderLineItem{{ProductID: f.amox.ID, Name: "Amoxicillin", Quantity: 1, RequiresPrescription: true}},
		PaymentMethod: model.PaymentCOD,
		OrderStatus:   model.OrderPlaced,
		PaymentStatus: model.PaymentPending,
	}
	require.NoError(t, f.repos.Orders.Create(ctx, order))
	require.NoError(t, f.repos.Payments.Create(ctx, &model.Payment{OrderID: order.ID, TransactionID: "TRX-RXLESS0000", PaymentStatus: model.PaymentPending}))

	_, err := f.svc.UpdateStatus(ctx, order.ID, model.OrderConfirmed)
	assertStatus(t, err, http.StatusBadRequest)
}

func TestUpdateStatus_CancelPaidOrderRestocks(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.place(t, model.PaymentOnline,
		OrderItemInput{ProductID: f.napa.ID, Quantity: 4},
		OrderItemInput{ProductID: f.amox.ID, Quantity: 5},
	)
	assert.Equal(t, 6, f.stock(t, f.napa.ID))
	assert.Equal(t, 0, f.stock(t, f.amox.ID))

	_, err := f.svc.UpdatePaymentStatus(ctx, order.ID, model.PaymentPaid)
	require.NoError(t, err)

	order, err = f.svc.UpdateStatus(ctx, order.ID, model.OrderCancelled)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, order.OrderStatus)
	assert.Equal(t, model.PaymentCancelled, order.PaymentStatus)
	assert.Equal(t, 10, f.stock(t, f.napa.ID))
	assert.Equal(t, 5, f.stock(t, f.amox.ID))

	amox, err := f.repos.Products.FindByID(ctx, f.amox.ID)
	require.NoError(t, err)
	assert.True(t, amox.InStock)

	payment, err := f.repos.Payments.FindByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCancelled, payment.PaymentStatus)

	_, err = f.svc.UpdatePaymentStatus(ctx, order.ID, model.PaymentPaid)
	assertStatus(t, err, http.StatusBadRequest)
}

func TestUpdateStatus_Rejections(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.place(t, model.PaymentCOD, OrderItemInput{ProductID: f.napa.ID, Quantity: 1})

	_, err := f.svc.UpdateStatus(ctx, order.ID, model.OrderPlaced)
	assertStatus(t, err, http.StatusBadRequest)

	_, err = f.svc.UpdateStatus(ctx, order.ID, "LOST")
	assertStatus(t, err, http.StatusBadRequest)

	_, err = f.svc.UpdateStatus(ctx, 999, model.OrderConfirmed)
	assertStatus(t, err, http.StatusNotFound)

	_, err = f.svc.UpdatePaymentStatus(ctx, order.ID, model.PaymentCancelled)
	assertStatus(t, err, http.StatusBadRequest)

	_, err = f.svc.UpdatePaymentStatus(ctx, order.ID, model.PaymentFailed)
	require.NoError(t, err)
	_, err = f.svc.UpdatePaymentStatus(ctx, order.ID, model.PaymentPending)
	assertStatus(t, err, http.StatusBadRequest)
	_, err = f.svc.UpdatePaymentStatus(ctx, order.ID, model.PaymentPaid)
	require.NoError(t, err)
}

func TestOrderQueries(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	first := f.place(t, model.PaymentCOD, OrderItemInput{ProductID: f.napa.ID, Quantity: 1})
	second := f.place(t, model.PaymentOnline, OrderItemInput{ProductID: f.napa.ID, Quantity: 1})

	mine, err := f.svc.ListMine(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)

	got, err := f.svc.GetMine(ctx, f.customer.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, got.OrderID)

	_, err = f.svc.GetMine(ctx, f.customer.ID+1, first.ID)
	assertStatus(t, err, http.StatusNotFound)

	orders, meta, err := f.svc.List(ctx, query.Params{
		Filters: map[string]string{"payment_method": "ONLINE"},
		Page:    1,
		Limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, query.Meta{Page: 1, Limit: 10, Total: 1, TotalPage: 1}, meta)

	detail, err := f.svc.Get(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Payment)
	assert.Equal(t, first.TransactionID, detail.Payment.TransactionID)
}
