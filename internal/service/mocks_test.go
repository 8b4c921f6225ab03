package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"chatmart/internal/domain"
	"chatmart/internal/notifier"
	"chatmart/internal/repository"
)

// Mock repositories for testing

type mockProductRepository struct {
	products map[int64]*domain.Product
	nextID   int64
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products: make(map[int64]*domain.Product),
		nextID:   1,
	}
}

func (m *mockProductRepository) add(p *domain.Product) *domain.Product {
	if p.ID == 0 {
		p.ID = m.nextID
		m.nextID++
	}
	if p.MinOrderQuantity == 0 {
		p.MinOrderQuantity = 1
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	m.products[p.ID] = p
	return p
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.add(product)
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) SoftDelete(ctx context.Context, id int64) error {
	product, ok := m.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	product.IsAvailable = false
	product.IsHidden = true
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	clone := *product
	return &clone, nil
}

func (m *mockProductRepository) List(ctx context.Context, filter *domain.ProductFilter, includeHidden bool) ([]*domain.Product, int, error) {
	matched := []*domain.Product{}
	for _, p := range m.sorted() {
		if !includeHidden && p.IsHidden {
			continue
		}
		if filter.Category != nil && (p.Category == nil || *p.Category != *filter.Category) {
			continue
		}
		if filter.IsAvailable != nil && p.IsAvailable != *filter.IsAvailable {
			continue
		}
		matched = append(matched, p)
	}

	total := len(matched)
	offset := (filter.Page - 1) * filter.PerPage
	if offset >= total {
		return []*domain.Product{}, total, nil
	}
	end := offset + filter.PerPage
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *mockProductRepository) Search(ctx context.Context, query string, limit int) ([]*domain.Product, error) {
	results := []*domain.Product{}
	needle := strings.ToLower(query)
	for _, p := range m.sorted() {
		if len(results) >= limit {
			break
		}
		if !p.IsAvailable || p.IsHidden {
			continue
		}
		if strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle) ||
			strings.Contains(strings.ToLower(p.Tags), needle) {
			results = append(results, p)
		}
	}
	return results, nil
}

func (m *mockProductRepository) Categories(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	categories := []string{}
	for _, p := range m.products {
		if p.Category != nil && !p.IsHidden && !seen[*p.Category] {
			seen[*p.Category] = true
			categories = append(categories, *p.Category)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

func (m *mockProductRepository) Featured(ctx context.Context, limit int) ([]*domain.Product, error) {
	candidates := []*domain.Product{}
	for _, p := range m.sorted() {
		if p.IsPurchasable() {
			candidates = append(candidates, p)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ViewsCount+candidates[i].OrdersCount*10 >
			candidates[j].ViewsCount+candidates[j].OrdersCount*10
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (m *mockProductRepository) LowStock(ctx context.Context, threshold int) ([]*domain.Product, error) {
	results := []*domain.Product{}
	for _, p := range m.sorted() {
		if p.IsAvailable && !p.IsHidden && p.StockQuantity > 0 && p.StockQuantity < threshold {
			results = append(results, p)
		}
	}
	return results, nil
}

func (m *mockProductRepository) IncrementViews(ctx context.Context, id int64) error {
	product, ok := m.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	product.ViewsCount++
	return nil
}

func (m *mockProductRepository) ReserveStock(ctx context.Context, productID int64, quantity int) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, repository.ErrInvalidQuantity
	}
	product, ok := m.products[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	if !product.IsPurchasable() {
		return nil, repository.ErrProductUnpurchasable
	}
	if quantity < product.MinOrderQuantity {
		return nil, repository.ErrInvalidQuantity
	}
	if product.MaxOrderQuantity != nil && quantity > *product.MaxOrderQuantity {
		return nil, repository.ErrInvalidQuantity
	}
	if quantity > product.StockQuantity {
		return nil, repository.ErrInsufficientStock
	}
	product.StockQuantity -= quantity
	product.OrdersCount++
	clone := *product
	return &clone, nil
}

func (m *mockProductRepository) RestoreStock(ctx context.Context, productID int64, quantity int) error {
	product, ok := m.products[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	product.StockQuantity += quantity
	return nil
}

func (m *mockProductRepository) BulkReserveStock(ctx context.Context, items []domain.StockRequest) ([]*domain.Product, error) {
	merged := map[int64]int{}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, repository.ErrInvalidQuantity
		}
		merged[item.ProductID] += item.Quantity
	}

	ids := make([]int64, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	// validate everything before mutating anything
	for _, id := range ids {
		product, ok := m.products[id]
		if !ok {
			return nil, repository.ErrProductNotFound
		}
		qty := merged[id]
		if !product.IsPurchasable() {
			return nil, repository.ErrProductUnpurchasable
		}
		if qty < product.MinOrderQuantity ||
			(product.MaxOrderQuantity != nil && qty > *product.MaxOrderQuantity) {
			return nil, repository.ErrInvalidQuantity
		}
		if qty > product.StockQuantity {
			return nil, repository.ErrInsufficientStock
		}
	}

	reserved := []*domain.Product{}
	for _, id := range ids {
		product := m.products[id]
		product.StockQuantity -= merged[id]
		product.OrdersCount++
		clone := *product
		reserved = append(reserved, &clone)
	}
	return reserved, nil
}

func (m *mockProductRepository) BulkRestoreStock(ctx context.Context, items []domain.StockRequest) error {
	for _, item := range items {
		if err := m.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockProductRepository) sorted() []*domain.Product {
	products := make([]*domain.Product, 0, len(m.products))
	for _, p := range m.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].SortOrder != products[j].SortOrder {
			return products[i].SortOrder < products[j].SortOrder
		}
		return products[i].ID < products[j].ID
	})
	return products
}

type cartKey struct {
	userID    int64
	productID int64
}

type mockCartRepository struct {
	items       map[cartKey]*domain.CartItem
	productRepo *mockProductRepository
	nextID      int64
}

func newMockCartRepository(productRepo *mockProductRepository) *mockCartRepository {
	return &mockCartRepository{
		items:       make(map[cartKey]*domain.CartItem),
		productRepo: productRepo,
		nextID:      1,
	}
}

func (m *mockCartRepository) Upsert(ctx context.Context, item *domain.CartItem) error {
	key := cartKey{item.UserID, item.ProductID}
	if existing, ok := m.items[key]; ok {
		existing.Quantity += item.Quantity
		*item = *existing
		return nil
	}
	item.ID = m.nextID
	m.nextID++
	item.AddedAt = time.Now()
	stored := *item
	m.items[key] = &stored
	return nil
}

func (m *mockCartRepository) UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	item, ok := m.items[cartKey{userID, productID}]
	if !ok {
		return repository.ErrCartItemNotFound
	}
	item.Quantity = quantity
	return nil
}

func (m *mockCartRepository) Remove(ctx context.Context, userID, productID int64) error {
	key := cartKey{userID, productID}
	if _, ok := m.items[key]; !ok {
		return repository.ErrCartItemNotFound
	}
	delete(m.items, key)
	return nil
}

func (m *mockCartRepository) Clear(ctx context.Context, userID int64) error {
	for key := range m.items {
		if key.userID == userID {
			delete(m.items, key)
		}
	}
	return nil
}

func (m *mockCartRepository) FindByUser(ctx context.Context, userID int64) ([]*domain.CartItem, error) {
	items := []*domain.CartItem{}
	for key, item := range m.items {
		if key.userID != userID {
			continue
		}
		clone := *item
		if product, ok := m.productRepo.products[item.ProductID]; ok {
			productClone := *product
			clone.Product = &productClone
		}
		items = append(items, &clone)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *mockCartRepository) FindItem(ctx context.Context, userID, productID int64) (*domain.CartItem, error) {
	item, ok := m.items[cartKey{userID, productID}]
	if !ok {
		return nil, repository.ErrCartItemNotFound
	}
	clone := *item
	if product, pok := m.productRepo.products[productID]; pok {
		productClone := *product
		clone.Product = &productClone
	}
	return &clone, nil
}

func (m *mockCartRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	count := 0
	for key := range m.items {
		if key.userID == userID {
			count++
		}
	}
	return count, nil
}

type usageKey struct {
	promocodeID int64
	userID      int64
}

type mockPromocodeRepository struct {
	codes  map[string]*domain.Promocode
	usages map[usageKey]int
	nextID int64
	now    func() time.Time
}

func newMockPromocodeRepository() *mockPromocodeRepository {
	return &mockPromocodeRepository{
		codes:  make(map[string]*domain.Promocode),
		usages: make(map[usageKey]int),
		nextID: 1,
		now:    time.Now,
	}
}

func (m *mockPromocodeRepository) add(p *domain.Promocode) *domain.Promocode {
	if p.ID == 0 {
		p.ID = m.nextID
		m.nextID++
	}
	p.Code = strings.ToUpper(p.Code)
	if p.Status == "" {
		p.Status = domain.PromocodeStatusActive
	}
	m.codes[p.Code] = p
	return p
}

func (m *mockPromocodeRepository) Create(ctx context.Context, promocode *domain.Promocode) error {
	m.add(promocode)
	return nil
}

func (m *mockPromocodeRepository) Update(ctx context.Context, promocode *domain.Promocode) error {
	for _, existing := range m.codes {
		if existing.ID == promocode.ID {
			m.codes[existing.Code] = promocode
			return nil
		}
	}
	return repository.ErrPromocodeNotFound
}

func (m *mockPromocodeRepository) SetActive(ctx context.Context, id int64, active bool) error {
	for _, promocode := range m.codes {
		if promocode.ID == id {
			promocode.IsActive = active
			if active {
				promocode.Status = domain.PromocodeStatusActive
			} else {
				promocode.Status = domain.PromocodeStatusInactive
			}
			return nil
		}
	}
	return repository.ErrPromocodeNotFound
}

func (m *mockPromocodeRepository) FindByID(ctx context.Context, id int64) (*domain.Promocode, error) {
	for _, promocode := range m.codes {
		if promocode.ID == id {
			clone := *promocode
			return &clone, nil
		}
	}
	return nil, repository.ErrPromocodeNotFound
}

func (m *mockPromocodeRepository) FindByCode(ctx context.Context, code string) (*domain.Promocode, error) {
	promocode, ok := m.codes[strings.ToUpper(code)]
	if !ok {
		return nil, repository.ErrPromocodeNotFound
	}
	clone := *promocode
	return &clone, nil
}

func (m *mockPromocodeRepository) List(ctx context.Context, activeOnly bool) ([]*domain.Promocode, error) {
	promocodes := []*domain.Promocode{}
	for _, promocode := range m.codes {
		if activeOnly && !promocode.IsActive {
			continue
		}
		clone := *promocode
		promocodes = append(promocodes, &clone)
	}
	sort.Slice(promocodes, func(i, j int) bool { return promocodes[i].ID < promocodes[j].ID })
	return promocodes, nil
}

func (m *mockPromocodeRepository) HasUserUsed(ctx context.Context, promocodeID, userID int64) (bool, error) {
	return m.usages[usageKey{promocodeID, userID}] > 0, nil
}

func (m *mockPromocodeRepository) Apply(ctx context.Context, code string, userID int64, orderID *int64, orderAmount decimal.Decimal) (*domain.Promocode, decimal.Decimal, error) {
	promocode, ok := m.codes[strings.ToUpper(code)]
	if !ok {
		return nil, decimal.Zero, repository.ErrPromocodeNotFound
	}

	now := m.now()
	switch promocode.EffectiveStatus(now) {
	case domain.PromocodeStatusInactive:
		return nil, decimal.Zero, repository.ErrPromocodeInactive
	case domain.PromocodeStatusExpired:
		return nil, decimal.Zero, repository.ErrPromocodeExpired
	case domain.PromocodeStatusExhausted:
		return nil, decimal.Zero, repository.ErrPromocodeExhausted
	}

	if promocode.MinOrderAmount != nil && orderAmount.LessThan(*promocode.MinOrderAmount) {
		return nil, decimal.Zero, repository.ErrPromocodeBelowMinimum
	}

	key := usageKey{promocode.ID, userID}
	if promocode.OnePerUser && m.usages[key] > 0 {
		return nil, decimal.Zero, repository.ErrPromocodeAlreadyUsed
	}

	discount := promocode.CalculateDiscount(orderAmount, now)
	m.usages[key]++
	promocode.CurrentUses++
	promocode.Status = promocode.EffectiveStatus(now)

	clone := *promocode
	return &clone, discount, nil
}

func (m *mockPromocodeRepository) Usages(ctx context.Context, promocodeID int64) ([]*domain.PromocodeUsage, error) {
	usages := []*domain.PromocodeUsage{}
	for key, count := range m.usages {
		if key.promocodeID != promocodeID {
			continue
		}
		for i := 0; i < count; i++ {
			usages = append(usages, &domain.PromocodeUsage{
				PromocodeID: key.promocodeID,
				UserID:      key.userID,
			})
		}
	}
	return usages, nil
}

// mockNotifier records low stock alerts; alerts fire on a goroutine so
// access is guarded
type mockNotifier struct {
	mu     sync.Mutex
	alerts []notifier.LowStockAlert
	fired  chan struct{}
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{fired: make(chan struct{}, 16)}
}

func (m *mockNotifier) NotifyLowStock(ctx context.Context, alert notifier.LowStockAlert) error {
	m.mu.Lock()
	m.alerts = append(m.alerts, alert)
	m.mu.Unlock()
	m.fired <- struct{}{}
	return nil
}

func (m *mockNotifier) alertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

func (m *mockNotifier) waitForAlert(timeout time.Duration) bool {
	select {
	case <-m.fired:
		return true
	case <-time.After(timeout):
		return false
	}
}
