package datagrid

import (
	"fmt"

	"github.com/krfmo/gridsim/simkit"
)

// Catalogue is the process-wide replica catalogue (spec.md §4.6): it
// tracks which resource holds the master copy of each file and which
// resources hold replicas, so a replica manager can resolve a missing
// required file to a host to request it from.
type Catalogue struct {
	masters         map[string]simkit.EntityID
	replicas        map[string]map[simkit.EntityID]bool
	sizes           map[string]int64
	registrationIDs map[string]string
	nextID          int
}

// NewCatalogue creates an empty catalogue.
func NewCatalogue() *Catalogue {
	return &Catalogue{
		masters:         make(map[string]simkit.EntityID),
		replicas:        make(map[string]map[simkit.EntityID]bool),
		sizes:           make(map[string]int64),
		registrationIDs: make(map[string]string),
	}
}

// AddMaster registers host as the master holder of name and assigns it a
// fresh registration id (spec.md §3: "a master copy is unique per
// (name, registrationId)"; §4.6's uniqueId the replica manager folds
// into the stored file's name on ADD_MASTER). Fails if a master is
// already registered for that name.
func (c *Catalogue) AddMaster(name string, host simkit.EntityID, size int64) (string, error) {
	if _, exists := c.masters[name]; exists {
		return "", fmt.Errorf("%w: %s already has a master", ErrExistReadOnly, name)
	}
	c.nextID++
	regID := fmt.Sprintf("r%d", c.nextID)
	c.masters[name] = host
	c.sizes[name] = size
	c.registrationIDs[name] = regID
	return regID, nil
}

// RegistrationID returns the registration id assigned to name's master,
// the id every replica of name must reference.
func (c *Catalogue) RegistrationID(name string) (string, bool) {
	id, ok := c.registrationIDs[name]
	return id, ok
}

// AddReplica registers host as holding a replica of name. Fails if no
// master is registered yet (spec.md §4.6: "a master file must be
// registered before replicas can be made").
func (c *Catalogue) AddReplica(name string, host simkit.EntityID) error {
	if _, ok := c.masters[name]; !ok {
		return fmt.Errorf("%w: %s has no master to replicate", ErrFileNotFound, name)
	}
	if c.replicas[name] == nil {
		c.replicas[name] = make(map[simkit.EntityID]bool)
	}
	c.replicas[name][host] = true
	return nil
}

// DeleteMaster removes host's master registration for name.
func (c *Catalogue) DeleteMaster(name string, host simkit.EntityID) error {
	if c.masters[name] != host {
		return fmt.Errorf("%w: %s is not mastered at %s", ErrFileNotFound, name, host)
	}
	delete(c.masters, name)
	delete(c.sizes, name)
	delete(c.registrationIDs, name)
	return nil
}

// DeleteReplica removes host's replica registration for name.
func (c *Catalogue) DeleteReplica(name string, host simkit.EntityID) error {
	hosts := c.replicas[name]
	if hosts == nil || !hosts[host] {
		return fmt.Errorf("%w: %s has no replica at %s", ErrFileNotFound, name, host)
	}
	delete(hosts, host)
	return nil
}

// Lookup resolves name to any resource currently holding a copy (replica
// preferred over master, matching GridSim's own load-spreading intent),
// or ok=false if the file is untracked anywhere.
func (c *Catalogue) Lookup(name string) (simkit.EntityID, bool) {
	for host := range c.replicas[name] {
		return host, true
	}
	if host, ok := c.masters[name]; ok {
		return host, true
	}
	return "", false
}

// IsMaster reports whether host holds the master copy of name.
func (c *Catalogue) IsMaster(name string, host simkit.EntityID) bool {
	return c.masters[name] == host
}
