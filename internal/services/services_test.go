package services

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

var errUnauthorized = &api.RequestError{Kind: api.KindUnauthenticated, Status: 401, Message: "Unauthorized"}

// fakeService is an in-memory backend. Methods not needed by these tests
// panic through the nil embedded interface.
type fakeService struct {
	api.Service

	mu                 sync.Mutex
	accounts           []core.Account
	accountsErr        error
	categories         []core.Category
	categoryFailures   int // GetCategories fails this many times first
	categoriesErr      error
	rejectCategory     map[string]bool
	createdCategories  []core.CategoryInput
	txs                map[string][]core.Transaction
	txErr              map[string]error
	lastFilter         api.TransactionFilter
	tx                 core.Transaction
	createdTx          []core.TransactionInput
	updatedTx          map[string]core.TransactionInput
	writeErr           error
	transactionFetches int
}

func (f *fakeService) GetAccounts(context.Context) ([]core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts, f.accountsErr
}

func (f *fakeService) GetCategories(context.Context) ([]core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.categoryFailures > 0 {
		f.categoryFailures--
		return nil, f.categoriesErr
	}
	return append([]core.Category(nil), f.categories...), nil
}

func (f *fakeService) CreateCategory(_ context.Context, in core.CategoryInput) (core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdCategories = append(f.createdCategories, in)
	if f.rejectCategory[in.Name] {
		return core.Category{}, &api.RequestError{Kind: api.KindHTTP, Status: 409, Message: "Category already exists"}
	}
	c := core.Category{ID: "seed-" + string(in.Type) + "-" + in.Name, Name: in.Name, Type: in.Type}
	f.categories = append(f.categories, c)
	return c, nil
}

func (f *fakeService) GetTransactions(_ context.Context, accountID string, filter api.TransactionFilter) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactionFetches++
	f.lastFilter = filter
	if err := f.txErr[accountID]; err != nil {
		return nil, err
	}
	return f.txs[accountID], nil
}

func (f *fakeService) GetTransaction(context.Context, string, string) (core.Transaction, error) {
	return f.tx, nil
}

func (f *fakeService) CreateTransaction(_ context.Context, in core.TransactionInput) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return core.Transaction{}, f.writeErr
	}
	f.createdTx = append(f.createdTx, in)
	return core.Transaction{ID: "new"}, nil
}

func (f *fakeService) UpdateTransaction(_ context.Context, id string, in core.TransactionInput) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updatedTx == nil {
		f.updatedTx = map[string]core.TransactionInput{}
	}
	f.updatedTx[id] = in
	return core.Transaction{ID: id}, nil
}

func at(day int) time.Time {
	return time.Date(2024, 3, day, 12, 0, 0, 0, time.UTC)
}

func twoAccounts() *fakeService {
	return &fakeService{
		accounts: []core.Account{
			{ID: "a1", Name: "Wallet", Balance: core.Money{Cents: 100000}},
			{ID: "a2", Name: "Savings", Balance: core.Money{Cents: 25050}},
		},
		categories: []core.Category{
			{ID: "c1", Name: "Salary", Type: core.Income},
			{ID: "c2", Name: "Food", Type: core.Expense},
			{ID: "c3", Name: "Rent", Type: core.Expense},
		},
		txs: map[string][]core.Transaction{
			"a1": {
				{ID: "t1", AccountID: "a1", Type: core.Income, Amount: core.Money{Cents: 30000}, CreatedAt: at(1)},
				{ID: "t2", AccountID: "a1", Type: "INCOME", Amount: core.Money{Cents: 20000}, CreatedAt: at(5)},
			},
			"a2": {
				{ID: "t3", AccountID: "a2", Type: core.Expense, Amount: core.Money{Cents: 20000}, CreatedAt: at(3)},
				{ID: "t4", AccountID: "a2", Type: "transfer", Amount: core.Money{Cents: 999}},
			},
		},
	}
}

func TestDashboardTotalsAcrossAccounts(t *testing.T) {
	d, err := NewDashboardService(log.Discard()).Load(context.Background(), twoAccounts())
	require.NoError(t, err)

	assert.Equal(t, int64(50000), d.Stats.TotalIncome.Cents)
	assert.Equal(t, int64(20000), d.Stats.TotalExpense.Cents)
	assert.Equal(t, int64(125050), d.Stats.TotalBalance.Cents)
	assert.Equal(t, 2, d.Stats.AccountCount)
	assert.False(t, d.PartiallyLoaded())

	require.Len(t, d.Recent, 4)
	assert.Equal(t, []string{"t2", "t3", "t1", "t4"}, []string{d.Recent[0].ID, d.Recent[1].ID, d.Recent[2].ID, d.Recent[3].ID})
	assert.Equal(t, "Wallet", d.Recent[0].AccountName)
	assert.Equal(t, "Savings", d.Recent[1].AccountName)
}

func TestDashboardToleratesAccountFailure(t *testing.T) {
	fake := twoAccounts()
	fake.txErr = map[string]error{"a2": errors.New("timeout")}

	d, err := NewDashboardService(nil).Load(context.Background(), fake)
	require.NoError(t, err)
	assert.Equal(t, []string{"Savings"}, d.FailedAccounts)
	assert.Equal(t, int64(50000), d.Stats.TotalIncome.Cents)
	assert.Zero(t, d.Stats.TotalExpense.Cents)
	assert.Equal(t, int64(125050), d.Stats.TotalBalance.Cents, "balances of failed accounts still count")
}

func TestDashboardAbortsOnUnauthenticated(t *testing.T) {
	fake := twoAccounts()
	fake.txErr = map[string]error{"a1": errUnauthorized}
	_, err := NewDashboardService(nil).Load(context.Background(), fake)
	assert.ErrorIs(t, err, api.ErrUnauthenticated)
	assert.Equal(t, 1, fake.transactionFetches)
}

func TestDashboardFailsWithoutAccounts(t *testing.T) {
	_, err := NewDashboardService(nil).Load(context.Background(), &fakeService{accountsErr: errors.New("down")})
	assert.Error(t, err)
}

func TestDashboardEmpty(t *testing.T) {
	d, err := NewDashboardService(nil).Load(context.Background(), &fakeService{})
	require.NoError(t, err)
	assert.True(t, d.Stats.TotalBalance.IsZero())
	assert.Empty(t, d.Recent)
}

func TestFormInitSelection(t *testing.T) {
	ctx := context.Background()
	svc := NewTransactionFormService(ReselectFirst, nil)

	f, err := svc.Init(ctx, twoAccounts(), "a2")
	require.NoError(t, err)
	assert.Equal(t, StateReady, f.State)
	assert.Equal(t, "a2", f.Values.AccountID)
	assert.Equal(t, core.Expense, f.Values.Type)
	assert.Equal(t, "c2", f.Values.CategoryID, "first matching category is preselected")

	f, err = svc.Init(ctx, twoAccounts(), "bogus")
	require.NoError(t, err)
	assert.Equal(t, "a1", f.Values.AccountID)

	f, err = NewTransactionFormService(ReselectClear, nil).Init(ctx, twoAccounts(), "")
	require.NoError(t, err)
	assert.Empty(t, f.Values.CategoryID)
}

func TestFormInitFailsOnAccounts(t *testing.T) {
	fake := twoAccounts()
	fake.accountsErr = errors.New("down")
	_, err := NewTransactionFormService(ReselectFirst, nil).Init(context.Background(), fake, "")
	assert.Error(t, err)
}

func TestFormSeedsDefaultCategories(t *testing.T) {
	fake := &fakeService{
		accounts:       []core.Account{{ID: "a1", Name: "Wallet"}},
		rejectCategory: map[string]bool{"Rent": true},
	}
	f, err := NewTransactionFormService(ReselectFirst, nil).Init(context.Background(), fake, "")
	require.NoError(t, err)

	require.Len(t, fake.createdCategories, 13)
	assert.Equal(t, DefaultCategories, fake.createdCategories)
	assert.Len(t, f.Categories, 12, "rejected seed is skipped")
	assert.Equal(t, "Food & Dining", f.FilteredCategories()[0].Name)
}

func TestFormSeedsWhenCategoryFetchFails(t *testing.T) {
	fake := &fakeService{
		accounts:         []core.Account{{ID: "a1"}},
		categoryFailures: 1,
		categoriesErr:    errors.New("500"),
	}
	f, err := NewTransactionFormService(ReselectFirst, nil).Init(context.Background(), fake, "")
	require.NoError(t, err)
	assert.Len(t, f.Categories, 13)
}

func TestFormInitPropagatesUnauthenticatedCategories(t *testing.T) {
	fake := &fakeService{categoryFailures: 1, categoriesErr: errUnauthorized}
	_, err := NewTransactionFormService(ReselectFirst, nil).Init(context.Background(), fake, "")
	assert.ErrorIs(t, err, api.ErrUnauthenticated)
	assert.Empty(t, fake.createdCategories)
}

func TestSetTypeNeverLeavesMismatch(t *testing.T) {
	categories := twoAccounts().categories
	tests := []struct {
		name     string
		policy   ReselectPolicy
		selected string
		toType   core.TxType
		want     string
	}{
		{"matching selection kept", ReselectFirst, "c3", core.Expense, "c3"},
		{"mismatch replaced by first", ReselectFirst, "c2", core.Income, "c1"},
		{"mismatch cleared", ReselectClear, "c2", core.Income, ""},
		{"no options clears", ReselectFirst, "c1", "transfer", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &TransactionForm{Categories: categories, Values: TransactionValues{CategoryID: tt.selected}, policy: tt.policy}
			f.SetType(tt.toType)
			assert.Equal(t, tt.want, f.Values.CategoryID)
			for _, c := range f.FilteredCategories() {
				assert.True(t, c.Type.Is(tt.toType))
			}
		})
	}
}

func TestValidateOrderAndMessages(t *testing.T) {
	base := twoAccounts()
	tests := []struct {
		name   string
		values TransactionValues
		want   string
	}{
		{"no account", TransactionValues{Amount: "0", CategoryID: ""}, MsgSelectAccount},
		{"sentinel account", TransactionValues{AccountID: core.NoID, Amount: "5", CategoryID: "c1"}, MsgSelectAccount},
		{"missing amount", TransactionValues{AccountID: "a1"}, MsgInvalidAmount},
		{"zero amount", TransactionValues{AccountID: "a1", Amount: "0"}, MsgInvalidAmount},
		{"negative amount", TransactionValues{AccountID: "a1", Amount: "-5", CategoryID: "c1"}, MsgInvalidAmount},
		{"non-numeric amount", TransactionValues{AccountID: "a1", Amount: "ten", CategoryID: "c1"}, MsgInvalidAmount},
		{"no category", TransactionValues{AccountID: "a1", Amount: "5"}, MsgSelectCategory},
		{"stale account", TransactionValues{AccountID: "gone", Amount: "5", CategoryID: "c1"}, MsgInvalidSelected},
		{"stale category", TransactionValues{AccountID: "a1", Amount: "5", CategoryID: "gone"}, MsgInvalidSelected},
		{"currency in account", TransactionValues{AccountID: "₹1,000", Amount: "5", CategoryID: "c1"}, MsgInvalidSelected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeService{}
			f := &TransactionForm{Accounts: base.accounts, Categories: base.categories}
			f.Apply(tt.values)
			err := NewTransactionFormService(ReselectFirst, nil).Submit(context.Background(), fake, f)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.want, ve.Message)
			assert.Equal(t, tt.want, f.Error)
			assert.Equal(t, StateReady, f.State)
			assert.Empty(t, fake.createdTx, "no network call")
		})
	}
}

func TestSubmitCreates(t *testing.T) {
	fake := twoAccounts()
	svc := NewTransactionFormService(ReselectFirst, nil)
	f, err := svc.Init(context.Background(), fake, "a2")
	require.NoError(t, err)

	f.Apply(TransactionValues{AccountID: "a2", CategoryID: "c1", Type: core.Income, Amount: "12,50", Description: "Bonus"})
	require.NoError(t, svc.Submit(context.Background(), fake, f))

	assert.Equal(t, StateNavigatedAway, f.State)
	assert.Equal(t, "/transactions?account=a2", f.RedirectURL())
	require.Len(t, fake.createdTx, 1)
	assert.Equal(t, core.TransactionInput{
		AccountID: "a2", CategoryID: "c1", Type: core.Income,
		Amount: core.Money{Cents: 1250}, Description: "Bonus",
	}, fake.createdTx[0])
}

func TestSubmitRejectsCategoryOfOtherType(t *testing.T) {
	tests := []struct {
		name   string
		policy ReselectPolicy
		want   string
	}{
		{"reselects first income category", ReselectFirst, "c1"},
		{"clears selection", ReselectClear, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := twoAccounts()
			svc := NewTransactionFormService(tt.policy, nil)
			f, err := svc.Init(context.Background(), fake, "a1")
			require.NoError(t, err)

			// Food is an expense category posted with the income type.
			f.Apply(TransactionValues{AccountID: "a1", CategoryID: "c2", Type: core.Income, Amount: "10"})
			err = svc.Submit(context.Background(), fake, f)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, MsgSelectCategory, f.Error)
			assert.Equal(t, StateReady, f.State)
			assert.Empty(t, fake.createdTx, "no network call")
			assert.Equal(t, tt.want, f.Values.CategoryID)
		})
	}
}

func TestSubmitFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"api message", &api.RequestError{Kind: api.KindHTTP, Status: 400, Message: "Insufficient balance"}, "Insufficient balance"},
		{"fallback", errors.New("opaque"), MsgSaveFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := twoAccounts()
			fake.writeErr = tt.err
			f := &TransactionForm{Accounts: fake.accounts, Categories: fake.categories}
			f.Apply(TransactionValues{AccountID: "a1", CategoryID: "c2", Amount: "3"})

			err := NewTransactionFormService(ReselectFirst, nil).Submit(context.Background(), fake, f)
			require.Error(t, err)
			assert.Equal(t, tt.want, f.Error)
			assert.Equal(t, StateReady, f.State)
		})
	}
}

func TestEditPrefillsAndUpdates(t *testing.T) {
	fake := twoAccounts()
	fake.tx = core.Transaction{ID: "t9", AccountID: "a2", CategoryID: "c3", Type: core.Expense, Amount: core.Money{Cents: 4505}, Description: "March"}
	svc := NewTransactionFormService(ReselectFirst, nil)

	f, err := svc.InitEdit(context.Background(), fake, "t9", "a2")
	require.NoError(t, err)
	assert.True(t, f.Editing())
	assert.Equal(t, "45.05", f.Values.Amount)
	assert.Equal(t, "c3", f.Values.CategoryID)

	require.NoError(t, svc.Submit(context.Background(), fake, f))
	assert.Empty(t, fake.createdTx)
	assert.Equal(t, int64(4505), fake.updatedTx["t9"].Amount.Cents)
}

func TestCategoryOptions(t *testing.T) {
	f, err := NewTransactionFormService(ReselectFirst, nil).CategoryOptions(context.Background(), twoAccounts(), core.Income, "c2")
	require.NoError(t, err)
	assert.Equal(t, "c1", f.Values.CategoryID)
	assert.Len(t, f.FilteredCategories(), 1)
}

func TestValuesFromForm(t *testing.T) {
	v := ValuesFromForm(url.Values{"accountId": {" a1 "}, "type": {"Income"}, "amount": {"5"}, "categoryId": {"c1"}})
	assert.Equal(t, TransactionValues{AccountID: "a1", CategoryID: "c1", Type: core.Income, Amount: "5"}, v)
	assert.Equal(t, core.Expense, ValuesFromForm(url.Values{"type": {"bogus"}}).Type)
	assert.Equal(t, ReselectClear, ParseReselectPolicy("CLEAR"))
	assert.Equal(t, ReselectFirst, ParseReselectPolicy(""))
}

func TestTransactionListDefaultsToFirstAccount(t *testing.T) {
	fake := twoAccounts()
	fake.txs["a1"] = append(fake.txs["a1"], core.Transaction{ID: "t5", CategoryID: "zz", CategoryName: "Gift", Type: core.Expense, Amount: core.Money{Cents: 100}})
	fake.txs["a1"][0].CategoryID = "c1"

	list, err := LoadTransactionList(context.Background(), fake, ParseTransactionQuery(url.Values{}))
	require.NoError(t, err)
	assert.Equal(t, "a1", list.Account.ID)
	assert.False(t, list.FilterActive)
	require.Len(t, list.Rows, 3)
	assert.Equal(t, "Salary", list.Rows[0].Category)
	assert.Equal(t, UnknownCategory, list.Rows[1].Category)
	assert.Equal(t, "Gift", list.Rows[2].Category)
	assert.Equal(t, int64(50000-100), list.Summary.Net.Cents)
	assert.Equal(t, 3, list.Summary.Count)
}

func TestTransactionListPassesFilter(t *testing.T) {
	fake := twoAccounts()
	q := ParseTransactionQuery(url.Values{
		"account": {"a2"}, "type": {"EXPENSE"}, "categoryId": {"c2"},
		"startDate": {"2024-01-01"}, "endDate": {"2024-01-31"},
	})
	list, err := LoadTransactionList(context.Background(), fake, q)
	require.NoError(t, err)
	assert.True(t, list.FilterActive)
	assert.Equal(t, api.TransactionFilter{Type: "expense", CategoryID: "c2", StartDate: "2024-01-01", EndDate: "2024-01-31"}, fake.lastFilter)
	assert.Equal(t, "a2", list.Query.Values().Get("account"))
	assert.Equal(t, "expense", list.Query.Values().Get("type"))
}

func TestTransactionListWithoutAccounts(t *testing.T) {
	fake := &fakeService{}
	list, err := LoadTransactionList(context.Background(), fake, TransactionQuery{})
	require.NoError(t, err)
	assert.False(t, list.HasAccount)
	assert.Zero(t, fake.transactionFetches)
}

func TestGroupCategoriesAndCount(t *testing.T) {
	g := GroupCategories(twoAccounts().categories)
	assert.Len(t, g.Income, 1)
	assert.Len(t, g.Expense, 2)
	assert.Equal(t, "2 account(s) found", AccountsFound(2))
}
