package service

import (
	"context"
	"time"

	"github.com/shualoalumin/dics-camp/internal/models"
	"github.com/shualoalumin/dics-camp/internal/toss"
)

// fakeStore is an in-memory Store with the same compare-and-set semantics
// as the SQL implementation.
type fakeStore struct {
	regs      map[string]*models.Registration
	logs      []*models.PaymentLog
	nextID    int64
	createErr error
	getErr    error
	markErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{regs: make(map[string]*models.Registration)}
}

func (fs *fakeStore) seed(orderID string, amount int64, status string, createdAt time.Time) {
	fs.nextID++
	fs.regs[orderID] = &models.Registration{
		ID:            fs.nextID,
		OrderID:       orderID,
		Amount:        amount,
		Status:        status,
		PaymentStatus: status,
		StudentName:   "Kim Student",
		StudentEmail:  "student@example.com",
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func (fs *fakeStore) CreateRegistration(ctx context.Context, reg *models.Registration) error {
	if fs.createErr != nil {
		return fs.createErr
	}
	fs.nextID++
	reg.ID = fs.nextID
	reg.CreatedAt = time.Now()
	reg.UpdatedAt = reg.CreatedAt
	stored := *reg
	fs.regs[reg.OrderID] = &stored
	return nil
}

func (fs *fakeStore) GetRegistrationByOrderID(ctx context.Context, orderID string) (*models.Registration, error) {
	if fs.getErr != nil {
		return nil, fs.getErr
	}
	reg, ok := fs.regs[orderID]
	if !ok {
		return nil, nil
	}
	out := *reg
	return &out, nil
}

func (fs *fakeStore) GetRegistrationByOrderIDAndEmail(ctx context.Context, orderID, email string) (*models.Registration, error) {
	reg, ok := fs.regs[orderID]
	if !ok || reg.StudentEmail != email {
		return nil, nil
	}
	out := *reg
	return &out, nil
}

func (fs *fakeStore) MarkPaid(ctx context.Context, orderID string, paidAt time.Time) (bool, error) {
	if fs.markErr != nil {
		return false, fs.markErr
	}
	reg, ok := fs.regs[orderID]
	if !ok {
		return false, nil
	}
	if reg.Status != models.StatusPending && reg.Status != models.StatusExpired {
		return false, nil
	}
	reg.Status = models.StatusPaid
	reg.PaymentStatus = models.StatusPaid
	reg.PaidAt.Time = paidAt
	reg.PaidAt.Valid = true
	reg.UpdatedAt = time.Now()
	return true, nil
}

func (fs *fakeStore) MarkFailed(ctx context.Context, orderID string) (bool, error) {
	if fs.markErr != nil {
		return false, fs.markErr
	}
	reg, ok := fs.regs[orderID]
	if !ok || reg.Status != models.StatusPending {
		return false, nil
	}
	reg.Status = models.StatusFailed
	reg.PaymentStatus = models.StatusFailed
	reg.UpdatedAt = time.Now()
	return true, nil
}

func (fs *fakeStore) ExpirePending(ctx context.Context, olderThan time.Time) ([]string, error) {
	var orderIDs []string
	for id, reg := range fs.regs {
		if reg.Status == models.StatusPending && reg.CreatedAt.Before(olderThan) {
			reg.Status = models.StatusExpired
			reg.PaymentStatus = models.StatusExpired
			reg.UpdatedAt = time.Now()
			orderIDs = append(orderIDs, id)
		}
	}
	return orderIDs, nil
}

func (fs *fakeStore) InsertPaymentLog(ctx context.Context, entry *models.PaymentLog) error {
	fs.logs = append(fs.logs, entry)
	return nil
}

func (fs *fakeStore) logTypes() []string {
	types := make([]string, 0, len(fs.logs))
	for _, l := range fs.logs {
		types = append(types, l.EventType)
	}
	return types
}

// fakeSlots counts ledger operations
type fakeSlots struct {
	reserveOK bool
	reserved  int
	released  int
	committed int
}

func newFakeSlots() *fakeSlots {
	return &fakeSlots{reserveOK: true}
}

func (fl *fakeSlots) ReserveSlot(ctx context.Context) (bool, error) {
	if !fl.reserveOK {
		return false, nil
	}
	fl.reserved++
	return true, nil
}

func (fl *fakeSlots) ReleaseSlot(ctx context.Context) error {
	fl.released++
	return nil
}

func (fl *fakeSlots) CommitSlot(ctx context.Context) error {
	fl.committed++
	return nil
}

func (fl *fakeSlots) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (fl *fakeSlots) ReleaseLock(ctx context.Context, lockKey string) error {
	return nil
}

// fakeConfirmer records provider confirm calls. onConfirm lets a test
// mutate shared state mid-call, simulating a webhook racing the callback.
type fakeConfirmer struct {
	calls      int
	lastOrder  string
	lastAmount int64
	err        error
	approvedAt time.Time
	onConfirm  func()
}

func (fc *fakeConfirmer) ConfirmPayment(ctx context.Context, orderID string, amount int64, paymentKey string) (*toss.Payment, error) {
	fc.calls++
	fc.lastOrder = orderID
	fc.lastAmount = amount
	if fc.onConfirm != nil {
		fc.onConfirm()
	}
	if fc.err != nil {
		return nil, fc.err
	}
	return &toss.Payment{
		PaymentKey:  paymentKey,
		OrderID:     orderID,
		Status:      "DONE",
		TotalAmount: amount,
		ApprovedAt:  fc.approvedAt,
	}, nil
}

// fakePublisher collects published events
type fakePublisher struct {
	created   []*models.RegistrationCreatedEvent
	confirmed []*models.PaymentConfirmedEvent
	failed    []*models.PaymentFailedEvent
	expired   []*models.RegistrationExpiredEvent
}

func (fp *fakePublisher) PublishRegistrationCreated(ctx context.Context, event *models.RegistrationCreatedEvent) error {
	fp.created = append(fp.created, event)
	return nil
}

func (fp *fakePublisher) PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	fp.confirmed = append(fp.confirmed, event)
	return nil
}

func (fp *fakePublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	fp.failed = append(fp.failed, event)
	return nil
}

func (fp *fakePublisher) PublishRegistrationExpired(ctx context.Context, event *models.RegistrationExpiredEvent) error {
	fp.expired = append(fp.expired, event)
	return nil
}
