package world

// ItemStack is one inventory slot; a zero value is an empty slot.
type ItemStack struct {
	Item  string
	Count int
}

// Inventory is a fixed-capacity slot list. Each slot holds one stack of a
// single item up to stackSize units.
type Inventory struct {
	Slots     []ItemStack
	stackSize int
}

func NewInventory(slots, stackSize int) *Inventory {
	if slots < 1 {
		slots = 1
	}
	if stackSize < 1 {
		stackSize = 1
	}
	return &Inventory{Slots: make([]ItemStack, slots), stackSize: stackSize}
}

func (inv *Inventory) StackSize() int { return inv.stackSize }

// Capacity is the total unit capacity across all slots.
func (inv *Inventory) Capacity() int { return len(inv.Slots) * inv.stackSize }

func (inv *Inventory) FreeSlots() int {
	n := 0
	for _, s := range inv.Slots {
		if s.Count == 0 {
			n++
		}
	}
	return n
}

func (inv *Inventory) Count(item string) int {
	n := 0
	for _, s := range inv.Slots {
		if s.Item == item {
			n += s.Count
		}
	}
	return n
}

func (inv *Inventory) Total() int {
	n := 0
	for _, s := range inv.Slots {
		n += s.Count
	}
	return n
}

// CanAdd reports whether one unit of item still fits: a non-full stack of the
// item or an empty slot.
func (inv *Inventory) CanAdd(item string) bool {
	for _, s := range inv.Slots {
		if s.Count == 0 {
			return true
		}
		if s.Item == item && s.Count < inv.stackSize {
			return true
		}
	}
	return false
}

// Add places one unit of item, filling an existing non-full stack first and
// the first empty slot otherwise. Returns false when nothing fits.
func (inv *Inventory) Add(item string) bool {
	for i := range inv.Slots {
		if inv.Slots[i].Item == item && inv.Slots[i].Count > 0 && inv.Slots[i].Count < inv.stackSize {
			inv.Slots[i].Count++
			return true
		}
	}
	for i := range inv.Slots {
		if inv.Slots[i].Count == 0 {
			inv.Slots[i] = ItemStack{Item: item, Count: 1}
			return true
		}
	}
	return false
}

// DepositAll moves every stack into bank atomically and returns the number
// of units moved.
func (inv *Inventory) DepositAll(bank map[string]int) int {
	moved := 0
	for i := range inv.Slots {
		if inv.Slots[i].Count > 0 {
			bank[inv.Slots[i].Item] += inv.Slots[i].Count
			moved += inv.Slots[i].Count
			inv.Slots[i] = ItemStack{}
		}
	}
	return moved
}
