package datagrid

import (
	"fmt"

	"github.com/krfmo/gridsim/job"
	"github.com/krfmo/gridsim/simkit"
)

// JobSink hands a fully-staged job to the resource's scheduling policy.
// policy.Policy satisfies this.
type JobSink interface {
	Submit(j *job.Job) error
}

// FileRequest is the FILE_REQUEST payload: a request for name, tagged
// with a service level (1 = priority over ordinary network traffic).
type FileRequest struct {
	Name        string
	RequesterID simkit.EntityID
	ServiceTag  int
}

// FileDelivery is the FILE_DELIVERY payload.
type FileDelivery struct {
	Attr FileAttr
}

type pendingJob struct {
	job      *job.Job
	required map[string]bool
}

// Manager is a resource's replica manager (spec.md §4.6): it owns one
// local Storage element, resolves missing required files through the
// shared Catalogue, and stages data jobs until every required file has
// arrived before handing them to the scheduling policy.
type Manager struct {
	id        simkit.EntityID
	ctx       *simkit.SimContext
	local     Storage
	catalogue *Catalogue
	sink      JobSink

	waiting []*pendingJob
	keys    map[string]string // logical file name -> local storage key, once registered
}

// NewManager creates a replica manager over local storage, resolving
// replicas through catalogue and forwarding staged jobs to sink.
func NewManager(id simkit.EntityID, ctx *simkit.SimContext, local Storage, catalogue *Catalogue, sink JobSink) *Manager {
	return &Manager{id: id, ctx: ctx, local: local, catalogue: catalogue, sink: sink, keys: make(map[string]string)}
}

// storageKey resolves a logical file name to the key it's actually stored
// under locally, falling back to the bare name for a file this manager
// has never registered under a renamed key (e.g. an in-flight delivery
// not yet stored).
func (m *Manager) storageKey(name string) string {
	if key, ok := m.keys[name]; ok {
		return key
	}
	return name
}

func (m *Manager) ID() simkit.EntityID { return m.id }

func (m *Manager) clock() float64 {
	if m.ctx == nil {
		return 0
	}
	return m.ctx.Clock()
}

func (m *Manager) sendTo(dest simkit.EntityID, tag simkit.Tag, data any) {
	if m.ctx == nil {
		return
	}
	m.ctx.Schedule(simkit.ScheduleNow, simkit.Event{Tag: tag, Src: m.id, Dest: dest, Data: data})
}

// SubmitDataJob implements spec.md §4.6's replica-manager submission
// path: if every required file is already local, the job goes straight
// to the policy; otherwise it is parked and a FILE_REQUEST is issued per
// missing file.
func (m *Manager) SubmitDataJob(j *job.Job) error {
	missing := make([]string, 0, len(j.RequiredFiles))
	for _, f := range j.RequiredFiles {
		if !m.local.HasFile(m.storageKey(f)) {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return m.sink.Submit(j)
	}

	pending := &pendingJob{job: j, required: make(map[string]bool, len(missing))}
	for _, f := range missing {
		pending.required[f] = true
	}
	m.waiting = append(m.waiting, pending)

	serviceTag := 0
	if j.Priority > 0 {
		serviceTag = 1
	}
	for _, f := range missing {
		host, ok := m.catalogue.Lookup(f)
		if !ok {
			continue // nothing registered anywhere to request from yet
		}
		m.sendTo(host, simkit.TagFileRequest, FileRequest{Name: f, RequesterID: m.id, ServiceTag: serviceTag})
	}
	return nil
}

// onFileRequest serves a FILE_REQUEST from a peer's replica manager.
func (m *Manager) onFileRequest(req FileRequest) {
	attr, ok := m.local.GetFile(m.storageKey(req.Name))
	if !ok {
		return
	}
	m.sendTo(req.RequesterID, simkit.TagFileDelivery, FileDelivery{Attr: attr})
}

// onFileDelivery implements step 4 of §4.6: store the delivered file
// locally under its own renamed key, then prune it from every parked
// job's required set; any job whose set becomes empty is submitted to
// the policy.
func (m *Manager) onFileDelivery(d FileDelivery) error {
	attr := d.Attr
	attr.IsMaster = false
	attr.ReadOnly = m.local.ReadOnly()
	attr.Owner = m.id
	attr.ResourceID = m.id
	attr.UpdateTime = m.clock()
	key := attr.Name + attr.RegistrationID
	if !m.local.HasFile(key) {
		if err := m.local.AddFile(key, attr); err != nil {
			return err
		}
		m.keys[attr.Name] = key
	}

	remaining := m.waiting[:0]
	for _, p := range m.waiting {
		delete(p.required, attr.Name)
		if len(p.required) == 0 {
			if err := m.sink.Submit(p.job); err != nil {
				return err
			}
			continue
		}
		remaining = append(remaining, p)
	}
	m.waiting = remaining
	return nil
}

// AddMaster implements ADD_MASTER (spec.md §4.6): register with the
// catalogue to obtain a unique registration id, then store the file
// locally under name+registrationId — the catalogue-assigned rename step
// (c) folded together with the local store (a) since Storage has no
// separate rename operation. A storage-side failure rolls the catalogue
// registration back.
func (m *Manager) AddMaster(name string, size int64) error {
	now := m.clock()
	regID, err := m.catalogue.AddMaster(name, m.id, size)
	if err != nil {
		return err
	}
	key := name + regID
	attr := FileAttr{
		Name: name, RegistrationID: regID, Type: "data", Size: size,
		Checksum: checksumFor(name, regID, size), Owner: m.id, ResourceID: m.id,
		IsMaster: true, ReadOnly: m.local.ReadOnly(), CreationTime: now, UpdateTime: now,
	}
	if err := m.local.AddFile(key, attr); err != nil {
		_ = m.catalogue.DeleteMaster(name, m.id)
		return err
	}
	m.keys[name] = key
	return nil
}

// AddReplica implements ADD_REPLICA: the catalogue must already master
// this name elsewhere, and the replica is stored under the master's own
// registration id (spec.md §3: "replicas reference the master's
// registration id").
func (m *Manager) AddReplica(name string, size int64) error {
	now := m.clock()
	regID, ok := m.catalogue.RegistrationID(name)
	if !ok {
		return fmt.Errorf("%w: %s has no master to replicate", ErrFileNotFound, name)
	}
	key := name + regID
	attr := FileAttr{
		Name: name, RegistrationID: regID, Type: "data", Size: size,
		Checksum: checksumFor(name, regID, size), Owner: m.id, ResourceID: m.id,
		IsMaster: false, ReadOnly: m.local.ReadOnly(), CreationTime: now, UpdateTime: now,
	}
	if err := m.local.AddFile(key, attr); err != nil {
		return err
	}
	if err := m.catalogue.AddReplica(name, m.id); err != nil {
		_ = m.local.DeleteFile(key)
		return err
	}
	m.keys[name] = key
	return nil
}

// DeleteMaster refuses to delete a file that isn't locally a master.
func (m *Manager) DeleteMaster(name string) error {
	key := m.storageKey(name)
	attr, ok := m.local.GetFile(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	if !attr.IsMaster {
		return fmt.Errorf("datagrid: %s is not a master at %s", name, m.id)
	}
	if err := m.local.DeleteFile(key); err != nil {
		return err
	}
	delete(m.keys, name)
	return m.catalogue.DeleteMaster(name, m.id)
}

// DeleteReplica refuses to delete a file that is locally a master.
func (m *Manager) DeleteReplica(name string) error {
	key := m.storageKey(name)
	attr, ok := m.local.GetFile(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	if attr.IsMaster {
		return fmt.Errorf("datagrid: %s is a master at %s, use DeleteMaster", name, m.id)
	}
	if err := m.local.DeleteFile(key); err != nil {
		return err
	}
	delete(m.keys, name)
	return m.catalogue.DeleteReplica(name, m.id)
}

// HandleEvent implements simkit.Entity.
func (m *Manager) HandleEvent(ctx *simkit.SimContext, ev simkit.Event) error {
	switch ev.Tag {
	case simkit.TagGridletSubmit:
		return m.SubmitDataJob(ev.Data.(*job.Job))
	case simkit.TagFileRequest:
		m.onFileRequest(ev.Data.(FileRequest))
		return nil
	case simkit.TagFileDelivery:
		return m.onFileDelivery(ev.Data.(FileDelivery))
	case simkit.TagFileAddMaster:
		req := ev.Data.(FileAttr)
		return m.AddMaster(req.Name, req.Size)
	case simkit.TagFileAddReplica:
		req := ev.Data.(FileAttr)
		return m.AddReplica(req.Name, req.Size)
	case simkit.TagFileDeleteMaster:
		return m.DeleteMaster(ev.Data.(string))
	case simkit.TagFileDeleteReplica:
		return m.DeleteReplica(ev.Data.(string))
	default:
		return nil
	}
}
