package backup

import "encoding/json"

// SchemaVersion is stamped into every snapshot and checked on restore.
// Bump the minor for additive slot changes, the major for breaking ones.
const SchemaVersion = "1.2.0"

// SlotKind distinguishes entity collections from single configuration values
type SlotKind string

const (
	KindCollection SlotKind = "collection"
	KindScalar     SlotKind = "scalar"
)

// RestoreGroup orders slot writes during restore so the most valuable data
// lands first if a restore is interrupted
type RestoreGroup int

const (
	GroupBusiness RestoreGroup = iota // transactional collections
	GroupConfig                       // company profile, theme, permissions
	GroupPreferences                  // UI preference scalars
	GroupSettings                     // backup/notification settings, applied last
	groupUnknown                      // slots this engine version does not know
)

// Slot is one named unit of state tracked by the engine
type Slot struct {
	Name  string
	Kind  SlotKind
	Group RestoreGroup

	// Counted marks collection slots included in metadata dataIntegrity
	Counted bool
}

// registry enumerates every slot collected into a snapshot, in collection
// order. The set is versioned through SchemaVersion: adding a slot is a minor
// bump, since older snapshots simply lack the new name and restore ignores
// absence.
var registry = []Slot{
	{Name: "users", Kind: KindCollection, Group: GroupBusiness, Counted: true},
	{Name: "products", Kind: KindCollection, Group: GroupBusiness, Counted: true},
	{Name: "suppliers", Kind: KindCollection, Group: GroupBusiness, Counted: true},
	{Name: "sales", Kind: KindCollection, Group: GroupBusiness, Counted: true},
	{Name: "cashMovements", Kind: KindCollection, Group: GroupBusiness, Counted: true},
	{Name: "expenses", Kind: KindCollection, Group: GroupBusiness, Counted: true},
	{Name: "cashRegisters", Kind: KindCollection, Group: GroupBusiness, Counted: true},
	{Name: "cashSessions", Kind: KindCollection, Group: GroupBusiness, Counted: true},

	{Name: "companyData", Kind: KindScalar, Group: GroupConfig},
	{Name: "companyLogo", Kind: KindScalar, Group: GroupConfig},
	{Name: "favicon", Kind: KindScalar, Group: GroupConfig},
	{Name: "customColors", Kind: KindScalar, Group: GroupConfig},
	{Name: "theme", Kind: KindScalar, Group: GroupConfig},
	{Name: "categories", Kind: KindCollection, Group: GroupConfig, Counted: true},
	{Name: "rolesPermissions", Kind: KindScalar, Group: GroupConfig},
	{Name: "currentUser", Kind: KindScalar, Group: GroupConfig},

	{Name: "sidebarState", Kind: KindScalar, Group: GroupPreferences},
	{Name: "language", Kind: KindScalar, Group: GroupPreferences},
	{Name: "currency", Kind: KindScalar, Group: GroupPreferences},
	{Name: "timezone", Kind: KindScalar, Group: GroupPreferences},
	{Name: "defaultPaymentMethod", Kind: KindScalar, Group: GroupPreferences},
	{Name: "printReceipts", Kind: KindScalar, Group: GroupPreferences},

	{Name: "notificationSettings", Kind: KindScalar, Group: GroupSettings},
	{Name: "autoBackupSettings", Kind: KindScalar, Group: GroupSettings},
}

// Slots returns the registered slots in collection order
func Slots() []Slot {
	out := make([]Slot, len(registry))
	copy(out, registry)
	return out
}

// SlotNames returns the registered slot names in collection order
func SlotNames() []string {
	names := make([]string, len(registry))
	for i, slot := range registry {
		names[i] = slot.Name
	}
	return names
}

func lookupSlot(name string) (Slot, bool) {
	for _, slot := range registry {
		if slot.Name == name {
			return slot, true
		}
	}
	return Slot{}, false
}

// defaultValue is substituted when a slot has never been written, so every
// snapshot enumerates the full slot set
func (s Slot) defaultValue() json.RawMessage {
	if s.Kind == KindCollection {
		return json.RawMessage("[]")
	}
	return json.RawMessage("null")
}
