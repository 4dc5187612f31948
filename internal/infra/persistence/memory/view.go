package memory

// Read-side accessors: transactionView methods feed rule evaluation and
// in-transaction reads; Store getters serve callers outside a transaction.

// ListOrders returns all orders within the snapshot.
func (v transactionView) ListOrders() []Order {
	out := make([]Order, 0, len(v.state.orders))
	for _, o := range v.state.orders {
		out = append(out, cloneOrder(o))
	}
	return out
}

// ListRoutings returns all routings within the snapshot.
func (v transactionView) ListRoutings() []Routing {
	out := make([]Routing, 0, len(v.state.routings))
	for _, r := range v.state.routings {
		out = append(out, cloneRouting(r))
	}
	return out
}

// ListWorkstations returns all workstations within the snapshot.
func (v transactionView) ListWorkstations() []Workstation {
	out := make([]Workstation, 0, len(v.state.workstations))
	for _, w := range v.state.workstations {
		out = append(out, cloneWorkstation(w))
	}
	return out
}

// ListScheduleItems returns all schedule items within the snapshot.
func (v transactionView) ListScheduleItems() []ScheduleItem {
	out := make([]ScheduleItem, 0, len(v.state.items))
	for _, i := range v.state.items {
		out = append(out, cloneScheduleItem(i))
	}
	return out
}

// ListNCRs returns all NCRs within the snapshot.
func (v transactionView) ListNCRs() []NCR {
	out := make([]NCR, 0, len(v.state.ncrs))
	for _, n := range v.state.ncrs {
		out = append(out, cloneNCR(n))
	}
	return out
}

// ListKanbanCards returns all kanban cards within the snapshot.
func (v transactionView) ListKanbanCards() []KanbanCard {
	out := make([]KanbanCard, 0, len(v.state.kanbans))
	for _, k := range v.state.kanbans {
		out = append(out, cloneKanbanCard(k))
	}
	return out
}

// ListMaintenanceLogs returns all maintenance logs within the snapshot.
func (v transactionView) ListMaintenanceLogs() []MaintenanceLog {
	out := make([]MaintenanceLog, 0, len(v.state.maintenance))
	for _, m := range v.state.maintenance {
		out = append(out, cloneMaintenanceLog(m))
	}
	return out
}

// ListMaterialStocks returns all stock records within the snapshot.
func (v transactionView) ListMaterialStocks() []MaterialStock {
	out := make([]MaterialStock, 0, len(v.state.stocks))
	for _, s := range v.state.stocks {
		out = append(out, cloneMaterialStock(s))
	}
	return out
}

// ListContainers returns all containers within the snapshot.
func (v transactionView) ListContainers() []Container {
	out := make([]Container, 0, len(v.state.containers))
	for _, c := range v.state.containers {
		out = append(out, cloneContainer(c))
	}
	return out
}

// ListQualityChecks returns all quality checks within the snapshot.
func (v transactionView) ListQualityChecks() []QualityCheck {
	out := make([]QualityCheck, 0, len(v.state.checks))
	for _, q := range v.state.checks {
		out = append(out, cloneQualityCheck(q))
	}
	return out
}

// ListSPCSeries returns all SPC series within the snapshot.
func (v transactionView) ListSPCSeries() []SPCSeries {
	out := make([]SPCSeries, 0, len(v.state.spc))
	for _, s := range v.state.spc {
		out = append(out, cloneSPCSeries(s))
	}
	return out
}

// ListOrderStateChanges returns the order transition audit trail ordered by
// occurrence time.
func (v transactionView) ListOrderStateChanges() []OrderStateChange {
	return sortedOrderStateChanges(v.state)
}

// FindOrder retrieves an order by ID from the snapshot.
func (v transactionView) FindOrder(id string) (Order, bool) {
	o, ok := v.state.orders[id]
	if !ok {
		return Order{}, false
	}
	return cloneOrder(o), true
}

// FindRouting retrieves a routing by ID from the snapshot.
func (v transactionView) FindRouting(id string) (Routing, bool) {
	r, ok := v.state.routings[id]
	if !ok {
		return Routing{}, false
	}
	return cloneRouting(r), true
}

// FindWorkstation retrieves a workstation by ID from the snapshot.
func (v transactionView) FindWorkstation(id string) (Workstation, bool) {
	w, ok := v.state.workstations[id]
	if !ok {
		return Workstation{}, false
	}
	return cloneWorkstation(w), true
}

// FindScheduleItem retrieves a schedule item by ID from the snapshot.
func (v transactionView) FindScheduleItem(id string) (ScheduleItem, bool) {
	i, ok := v.state.items[id]
	if !ok {
		return ScheduleItem{}, false
	}
	return cloneScheduleItem(i), true
}

// FindNCR retrieves an NCR by ID from the snapshot.
func (v transactionView) FindNCR(id string) (NCR, bool) {
	n, ok := v.state.ncrs[id]
	if !ok {
		return NCR{}, false
	}
	return cloneNCR(n), true
}

// FindKanbanCard retrieves a kanban card by ID from the snapshot.
func (v transactionView) FindKanbanCard(id string) (KanbanCard, bool) {
	k, ok := v.state.kanbans[id]
	if !ok {
		return KanbanCard{}, false
	}
	return cloneKanbanCard(k), true
}

// FindMaintenanceLog retrieves a maintenance log by ID from the snapshot.
func (v transactionView) FindMaintenanceLog(id string) (MaintenanceLog, bool) {
	m, ok := v.state.maintenance[id]
	if !ok {
		return MaintenanceLog{}, false
	}
	return cloneMaintenanceLog(m), true
}

// FindMaterialStock retrieves a stock record by ID from the snapshot.
func (v transactionView) FindMaterialStock(id string) (MaterialStock, bool) {
	s, ok := v.state.stocks[id]
	if !ok {
		return MaterialStock{}, false
	}
	return cloneMaterialStock(s), true
}

// FindContainer retrieves a container by ID from the snapshot.
func (v transactionView) FindContainer(id string) (Container, bool) {
	c, ok := v.state.containers[id]
	if !ok {
		return Container{}, false
	}
	return cloneContainer(c), true
}

// FindQualityCheck retrieves a quality check by ID from the snapshot.
func (v transactionView) FindQualityCheck(id string) (QualityCheck, bool) {
	q, ok := v.state.checks[id]
	if !ok {
		return QualityCheck{}, false
	}
	return cloneQualityCheck(q), true
}

// FindSPCSeries retrieves an SPC series by ID from the snapshot.
func (v transactionView) FindSPCSeries(id string) (SPCSeries, bool) {
	s, ok := v.state.spc[id]
	if !ok {
		return SPCSeries{}, false
	}
	return cloneSPCSeries(s), true
}

// GetOrder retrieves an order outside a transaction.
func (s *Store) GetOrder(id string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.state.orders[id]
	if !ok {
		return Order{}, false
	}
	return cloneOrder(o), true
}

// ListOrders returns all orders.
func (s *Store) ListOrders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Order, 0, len(s.state.orders))
	for _, o := range s.state.orders {
		out = append(out, cloneOrder(o))
	}
	return out
}

// GetRouting retrieves a routing outside a transaction.
func (s *Store) GetRouting(id string) (Routing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.routings[id]
	if !ok {
		return Routing{}, false
	}
	return cloneRouting(r), true
}

// ListRoutings returns all routings.
func (s *Store) ListRoutings() []Routing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Routing, 0, len(s.state.routings))
	for _, r := range s.state.routings {
		out = append(out, cloneRouting(r))
	}
	return out
}

// GetWorkstation retrieves a workstation outside a transaction.
func (s *Store) GetWorkstation(id string) (Workstation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.state.workstations[id]
	if !ok {
		return Workstation{}, false
	}
	return cloneWorkstation(w), true
}

// ListWorkstations returns all workstations.
func (s *Store) ListWorkstations() []Workstation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Workstation, 0, len(s.state.workstations))
	for _, w := range s.state.workstations {
		out = append(out, cloneWorkstation(w))
	}
	return out
}

// GetScheduleItem retrieves a schedule item outside a transaction.
func (s *Store) GetScheduleItem(id string) (ScheduleItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.state.items[id]
	if !ok {
		return ScheduleItem{}, false
	}
	return cloneScheduleItem(i), true
}

// ListScheduleItems returns all schedule items.
func (s *Store) ListScheduleItems() []ScheduleItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ScheduleItem, 0, len(s.state.items))
	for _, i := range s.state.items {
		out = append(out, cloneScheduleItem(i))
	}
	return out
}

// GetNCR retrieves an NCR outside a transaction.
func (s *Store) GetNCR(id string) (NCR, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.state.ncrs[id]
	if !ok {
		return NCR{}, false
	}
	return cloneNCR(n), true
}

// ListNCRs returns all NCRs.
func (s *Store) ListNCRs() []NCR {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]NCR, 0, len(s.state.ncrs))
	for _, n := range s.state.ncrs {
		out = append(out, cloneNCR(n))
	}
	return out
}

// GetKanbanCard retrieves a kanban card outside a transaction.
func (s *Store) GetKanbanCard(id string) (KanbanCard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.state.kanbans[id]
	if !ok {
		return KanbanCard{}, false
	}
	return cloneKanbanCard(k), true
}

// ListKanbanCards returns all kanban cards.
func (s *Store) ListKanbanCards() []KanbanCard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]KanbanCard, 0, len(s.state.kanbans))
	for _, k := range s.state.kanbans {
		out = append(out, cloneKanbanCard(k))
	}
	return out
}

// GetMaintenanceLog retrieves a maintenance log outside a transaction.
func (s *Store) GetMaintenanceLog(id string) (MaintenanceLog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.state.maintenance[id]
	if !ok {
		return MaintenanceLog{}, false
	}
	return cloneMaintenanceLog(m), true
}

// ListMaintenanceLogs returns all maintenance logs.
func (s *Store) ListMaintenanceLogs() []MaintenanceLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MaintenanceLog, 0, len(s.state.maintenance))
	for _, m := range s.state.maintenance {
		out = append(out, cloneMaintenanceLog(m))
	}
	return out
}

// GetMaterialStock retrieves a stock record outside a transaction.
func (s *Store) GetMaterialStock(id string) (MaterialStock, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.state.stocks[id]
	if !ok {
		return MaterialStock{}, false
	}
	return cloneMaterialStock(st), true
}

// ListMaterialStocks returns all stock records.
func (s *Store) ListMaterialStocks() []MaterialStock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MaterialStock, 0, len(s.state.stocks))
	for _, st := range s.state.stocks {
		out = append(out, cloneMaterialStock(st))
	}
	return out
}

// GetContainer retrieves a container outside a transaction.
func (s *Store) GetContainer(id string) (Container, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.containers[id]
	if !ok {
		return Container{}, false
	}
	return cloneContainer(c), true
}

// ListContainers returns all containers.
func (s *Store) ListContainers() []Container {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Container, 0, len(s.state.containers))
	for _, c := range s.state.containers {
		out = append(out, cloneContainer(c))
	}
	return out
}

// ListQualityChecks returns all quality checks.
func (s *Store) ListQualityChecks() []QualityCheck {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]QualityCheck, 0, len(s.state.checks))
	for _, q := range s.state.checks {
		out = append(out, cloneQualityCheck(q))
	}
	return out
}

// GetSPCSeries retrieves an SPC series outside a transaction.
func (s *Store) GetSPCSeries(id string) (SPCSeries, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series, ok := s.state.spc[id]
	if !ok {
		return SPCSeries{}, false
	}
	return cloneSPCSeries(series), true
}

// ListSPCSeries returns all SPC series.
func (s *Store) ListSPCSeries() []SPCSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SPCSeries, 0, len(s.state.spc))
	for _, series := range s.state.spc {
		out = append(out, cloneSPCSeries(series))
	}
	return out
}

// ListOrderStateChanges returns the order transition audit trail ordered by
// occurrence time.
func (s *Store) ListOrderStateChanges() []OrderStateChange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedOrderStateChanges(&s.state)
}
