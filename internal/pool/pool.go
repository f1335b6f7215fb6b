// Package pool tracks worker agents and the devices they expose. The pool
// is process-local: it is seeded from configuration at startup and reset
// on restart, which is why startup recovery demotes any job still bound
// to a device.
package pool

import (
	"fmt"
	"strings"
	"sync"

	"testdeck/internal/store"
)

// DeviceStatus is the availability state of a single device slot.
type DeviceStatus string

const (
	DeviceAvailable DeviceStatus = "available"
	DeviceBusy      DeviceStatus = "busy"
)

// AgentStatus is the aggregate state of an agent.
type AgentStatus string

const (
	AgentOnline  AgentStatus = "online"
	AgentBusy    AgentStatus = "busy"
	AgentOffline AgentStatus = "offline"
)

// Device is a capability-typed execution slot owned by an agent. The
// device stores its agent's ID as a lookup key rather than a pointer;
// agent status is recomputed from its devices on every mutation.
type Device struct {
	ID          string
	Type        store.Target
	Status      DeviceStatus
	AgentID     string
	CurrentJobs []string
}

// Agent is a worker host exposing one or more devices.
type Agent struct {
	ID      string
	Status  AgentStatus
	Devices []*Device
}

// DefaultSpec is the default pool composition: five agents, 15 devices.
// Insertion order matters for assignment tie-breaks.
const DefaultSpec = "agent-1:emulator-1,device-1;" +
	"agent-2:emulator-2,device-2,browserstack-1,browserstack-2;" +
	"agent-3:emulator-3,device-3,browserstack-3;" +
	"agent-4:emulator-4,device-4;" +
	"agent-5:emulator-5,device-5,browserstack-4,browserstack-5"

// Pool is the in-memory agent/device registry. The scheduler is the only
// writer; read APIs take the same lock so snapshots are consistent.
type Pool struct {
	mu     sync.Mutex
	agents []*Agent
}

// NewFromSpec parses a pool spec of the form
// "agent-1:emulator-1,device-1;agent-2:browserstack-1". Each device's
// target is inferred from its ID prefix.
func NewFromSpec(spec string) (*Pool, error) {
	p := &Pool{}
	for _, entry := range strings.Split(spec, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, devices, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("invalid pool spec entry %q: missing ':'", entry)
		}
		agent := &Agent{ID: strings.TrimSpace(name), Status: AgentOnline}
		for _, devID := range strings.Split(devices, ",") {
			devID = strings.TrimSpace(devID)
			if devID == "" {
				continue
			}
			target, err := targetFromID(devID)
			if err != nil {
				return nil, err
			}
			agent.Devices = append(agent.Devices, &Device{
				ID:      devID,
				Type:    target,
				Status:  DeviceAvailable,
				AgentID: agent.ID,
			})
		}
		if len(agent.Devices) == 0 {
			return nil, fmt.Errorf("invalid pool spec entry %q: agent has no devices", entry)
		}
		p.agents = append(p.agents, agent)
	}
	if len(p.agents) == 0 {
		return nil, fmt.Errorf("pool spec defines no agents")
	}
	return p, nil
}

func targetFromID(devID string) (store.Target, error) {
	prefix, _, _ := strings.Cut(devID, "-")
	t := store.Target(prefix)
	if !t.Valid() {
		return "", fmt.Errorf("device %q: unknown target prefix %q", devID, prefix)
	}
	return t, nil
}

// FindAvailable returns the first online agent holding an available device
// of the requested target. Iteration follows agent then device insertion
// order so assignment is deterministic.
func (p *Pool) FindAvailable(target store.Target) (*Agent, *Device, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, agent := range p.agents {
		if agent.Status == AgentOffline {
			continue
		}
		for _, dev := range agent.Devices {
			if dev.Status == DeviceAvailable && dev.Type == target {
				return agent, dev, true
			}
		}
	}
	return nil, nil, false
}

// Lookup resolves an agent/device pair by ID. Used by the scheduler to
// re-bind jobs that were locked to a device on a previous tick.
func (p *Pool) Lookup(agentID, deviceID string) (*Agent, *Device, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, agent := range p.agents {
		if agent.ID != agentID {
			continue
		}
		for _, dev := range agent.Devices {
			if dev.ID == deviceID {
				return agent, dev, true
			}
		}
	}
	return nil, nil, false
}

// Acquire marks the device busy, records the jobs it is serving, and
// recomputes the owning agent's status.
func (p *Pool) Acquire(dev *Device, jobIDs []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dev.Status = DeviceBusy
	dev.CurrentJobs = append([]string(nil), jobIDs...)
	p.recomputeAgent(dev.AgentID)
}

// Release marks the device available, clears its job list, and recomputes
// the owning agent's status.
func (p *Pool) Release(dev *Device) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dev.Status = DeviceAvailable
	dev.CurrentJobs = nil
	p.recomputeAgent(dev.AgentID)
}

// recomputeAgent sets the agent busy iff every owned device is busy.
// Caller must hold the lock. Offline agents keep their externally
// signaled status.
func (p *Pool) recomputeAgent(agentID string) {
	for _, agent := range p.agents {
		if agent.ID != agentID || agent.Status == AgentOffline {
			continue
		}
		agent.Status = AgentBusy
		for _, dev := range agent.Devices {
			if dev.Status == DeviceAvailable {
				agent.Status = AgentOnline
				break
			}
		}
	}
}

// DeviceInfo is a point-in-time copy of one device, for read APIs.
type DeviceInfo struct {
	ID          string       `json:"id"`
	Type        store.Target `json:"type"`
	Status      DeviceStatus `json:"status"`
	Target      store.Target `json:"target"`
	AgentID     string       `json:"agent_id"`
	CurrentJobs []string     `json:"current_jobs"`
}

// Snapshot returns a flat copy of every device in insertion order.
func (p *Pool) Snapshot() []DeviceInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []DeviceInfo
	for _, agent := range p.agents {
		for _, dev := range agent.Devices {
			out = append(out, DeviceInfo{
				ID:          dev.ID,
				Type:        dev.Type,
				Status:      dev.Status,
				Target:      dev.Type,
				AgentID:     dev.AgentID,
				CurrentJobs: append([]string(nil), dev.CurrentJobs...),
			})
		}
	}
	return out
}

// Counts returns the number of agents, devices, and jobs currently bound
// to busy devices.
func (p *Pool) Counts() (agents, devices, runningJobs int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	agents = len(p.agents)
	for _, agent := range p.agents {
		devices += len(agent.Devices)
		for _, dev := range agent.Devices {
			runningJobs += len(dev.CurrentJobs)
		}
	}
	return agents, devices, runningJobs
}
