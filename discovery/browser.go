package discovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/pkg/errors"
	"github.com/teris-io/shortid"
	"github.com/tidwall/buntdb"

	"github.com/ltpfabric/ltp/cmn/nlog"
)

// ChangeCallback is invoked whenever a browser learns of a new/updated
// device (present=true) or loses one (present=false) (spec §4.3
// "Browser"). mDNS "Removed" events are advisory only — the routing
// engine's health checker is the source of truth for online/offline
// (spec §4.3 "Key exclusion policy").
type ChangeCallback func(d *DiscoveredDevice, present bool)

// Browser subscribes to the fabric's three service types and maintains an
// indexed in-memory view of every device it has seen, backed by
// tidwall/buntdb so lookups by UUID or display name don't require a linear
// scan (spec §4.3 "Browser").
type Browser struct {
	serviceTypes []string
	onChange     ChangeCallback

	db *buntdb.DB

	mu    sync.Mutex
	ids   map[string]string // "serviceType|instance" -> stable id
}

// NewBrowser opens an in-memory buntdb store and prepares secondary
// indexes over device id and display name.
func NewBrowser(serviceTypes []string, onChange ChangeCallback) (*Browser, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, errors.Wrap(err, "discovery: open buntdb")
	}
	if err := db.CreateIndex("by_id", "*", buntdb.IndexJSON("id")); err != nil {
		return nil, err
	}
	if err := db.CreateIndex("by_name", "*", buntdb.IndexJSON("name")); err != nil {
		return nil, err
	}
	return &Browser{serviceTypes: serviceTypes, onChange: onChange, db: db, ids: make(map[string]string)}, nil
}

// Start launches one browse goroutine per configured service type; ctx
// cancellation stops them all.
func (b *Browser) Start(ctx context.Context) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return errors.Wrap(err, "discovery: new resolver")
	}
	for _, st := range b.serviceTypes {
		entries := make(chan *zeroconf.ServiceEntry, 16)
		if err := resolver.Browse(ctx, st, "local.", entries); err != nil {
			return errors.Wrapf(err, "discovery: browse %s", st)
		}
		go b.consume(st, entries)
	}
	return nil
}

func (b *Browser) consume(serviceType string, entries <-chan *zeroconf.ServiceEntry) {
	for entry := range entries {
		if entry == nil {
			continue
		}
		d := b.toDiscoveredDevice(serviceType, entry)
		present := len(entry.AddrIPv4) > 0 || entry.Port > 0
		b.upsert(d, present)
	}
}

func (b *Browser) toDiscoveredDevice(serviceType string, entry *zeroconf.ServiceEntry) *DiscoveredDevice {
	txt := parseTXT(entry.Text)
	host := entry.HostName
	if len(entry.AddrIPv4) > 0 {
		host = entry.AddrIPv4[0].String()
	}
	d := &DiscoveredDevice{
		ServiceType: serviceType,
		Instance:    entry.Instance,
		Host:        host,
		Port:        entry.Port,
		TXT:         txt,
		ID:          txt[txtID],
		Name:        txt[txtName],
		Desc:        txt[txtDesc],
		Version:     txt[txtVersion],
		HasCtrl:     txt[txtCtrl] == "1",
	}
	d.StableID = b.stableID(serviceType, entry.Instance)
	return d
}

// stableID assigns (and remembers) a short id the first time a
// (serviceType, instance) pair is seen, so routes keep working across a
// peer's UUID churn on restart (spec §4.5 "Aggregation": "Devices receive
// a stable id, fixed at first discovery").
func (b *Browser) stableID(serviceType, instance string) string {
	key := serviceType + "|" + instance
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.ids[key]; ok {
		return id
	}
	id, err := shortid.Generate()
	if err != nil {
		id = key // degrade gracefully rather than fail discovery over id generation
	}
	b.ids[key] = id
	return id
}

func (b *Browser) upsert(d *DiscoveredDevice, present bool) {
	key := dbKey(d.ServiceType, d.StableID)
	if present {
		val := fmt.Sprintf(`{"id":%q,"name":%q,"service":%q,"instance":%q,"host":%q,"port":%d}`,
			d.ID, d.Name, d.ServiceType, d.Instance, d.Host, d.Port)
		err := b.db.Update(func(tx *buntdb.Tx) error {
			_, _, err := tx.Set(key, val, nil)
			return err
		})
		if err != nil {
			nlog.Warningf("discovery: buntdb set %s failed: %v", key, err)
		}
	} else {
		_ = b.db.Update(func(tx *buntdb.Tx) error {
			_, err := tx.Delete(key)
			if err == buntdb.ErrNotFound {
				return nil
			}
			return err
		})
	}
	if b.onChange != nil {
		b.onChange(d, present)
	}
}

func dbKey(serviceType, stableID string) string { return serviceType + ":" + stableID }

// view applies fn against a read-only transaction, collecting keys under
// the given service-type prefix.
func (b *Browser) view(prefix string, fn func(key, value string)) {
	_ = b.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(prefix+":*", func(key, value string) bool {
			fn(key, value)
			return true
		})
	})
}

// Sinks, Sources, Controllers return the filtered views spec §4.3 names.
func (b *Browser) Sinks() []string       { return b.instances(ServiceSink) }
func (b *Browser) Sources() []string     { return b.instances(ServiceSource) }
func (b *Browser) Controllers() []string { return b.instances(ServiceController) }

func (b *Browser) instances(serviceType string) []string {
	var out []string
	b.view(serviceType, func(key, value string) { out = append(out, value) })
	return out
}

// LookupByID returns the raw JSON record for stableID under serviceType,
// or "" if not found — a direct key lookup by the browser-assigned stable
// id, not by the peer's UUID (see LookupByUUID for that).
func (b *Browser) LookupByID(serviceType, stableID string) (string, bool) {
	var val string
	err := b.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(dbKey(serviceType, stableID))
		if err != nil {
			return err
		}
		val = v
		return nil
	})
	return val, err == nil
}

// LookupByUUID returns the raw JSON record whose "id" field equals uuid,
// found via the by_id secondary index rather than a linear scan — the
// UUID-indexed half of spec §4.3's "lookups by UUID or display name".
func (b *Browser) LookupByUUID(uuid string) (string, bool) {
	return b.lookupIndexed("by_id", fmt.Sprintf(`{"id":%q}`, uuid))
}

// LookupByName returns the raw JSON record whose "name" field equals name,
// found via the by_name secondary index — the display-name half of spec
// §4.3's "lookups by UUID or display name".
func (b *Browser) LookupByName(name string) (string, bool) {
	return b.lookupIndexed("by_name", fmt.Sprintf(`{"name":%q}`, name))
}

func (b *Browser) lookupIndexed(index, pivot string) (string, bool) {
	var val string
	var found bool
	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendEqual(index, pivot, func(_, value string) bool {
			val, found = value, true
			return false
		})
	})
	if err != nil {
		nlog.Warningf("discovery: buntdb lookup via %s failed: %v", index, err)
		return "", false
	}
	return val, found
}

// Close releases the underlying buntdb store.
func (b *Browser) Close() error { return b.db.Close() }
