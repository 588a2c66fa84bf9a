// File: internal/concurrency/autotune.go
// Package concurrency
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Load-reactive pool resize. SmartAdjust samples CPU usage, available
// memory, worker utilization and queue pressure, then applies a fixed
// decision matrix. Adjustments are rate-limited by a cooldown so the pool
// does not oscillate.

package concurrency

import (
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultAdjustCooldown = 30 * time.Second

// Decision thresholds.
const (
	growCPUBelow      = 80.0
	growMemAboveBytes = 100 << 20
	growUtilAbove     = 0.8
	growPressureAbove = 0.6

	shrinkUtilBelow     = 0.2
	shrinkPressureBelow = 0.1
	lowMemBytes         = 50 << 20
	hotCPUAbove         = 95.0

	growFactorOverOptimal = 1.5
)

// SysLoad is one sample of host load.
type SysLoad struct {
	CPUPercent    float64
	AvailMemBytes uint64
}

// tuner holds the cooldown clock and the CPU-delta state between samples.
type tuner struct {
	mu         sync.Mutex
	cooldown   time.Duration
	lastAdjust time.Time
	prevBusy   uint64
	prevTotal  uint64
}

// SmartAdjust samples system and pool load and grows or shrinks the pool
// by the decision matrix. Returns true when a resize happened.
func (p *Pool) SmartAdjust() bool {
	p.tuner.mu.Lock()
	if time.Since(p.tuner.lastAdjust) < p.tuner.cooldown {
		p.tuner.mu.Unlock()
		return false
	}
	load := sampleSysLoad(&p.tuner)
	p.tuner.mu.Unlock()

	cur := int(p.threadCount.Load())
	optimal := runtime.NumCPU()
	util := p.utilization(cur)
	pressure := p.queuePressure(cur)

	target := cur
	switch {
	case load.CPUPercent < growCPUBelow && load.AvailMemBytes > growMemAboveBytes &&
		(util > growUtilAbove || pressure > growPressureAbove):
		ceiling := int(growFactorOverOptimal * float64(optimal))
		if cur < ceiling {
			target = cur + 1
		}
	case util < shrinkUtilBelow && pressure < shrinkPressureBelow && cur > minWorkers:
		target = cur - 1
	case load.AvailMemBytes > 0 && load.AvailMemBytes < lowMemBytes && cur > minWorkers:
		target = cur - 1
	case load.CPUPercent > hotCPUAbove && cur > optimal:
		target = optimal
	}

	if target == cur {
		return false
	}
	if err := p.Resize(target); err != nil {
		return false
	}
	p.tuner.mu.Lock()
	p.tuner.lastAdjust = time.Now()
	p.tuner.mu.Unlock()
	p.log.WithFields(logrus.Fields{
		"cpu":      load.CPUPercent,
		"util":     util,
		"pressure": pressure,
		"workers":  target,
	}).Info("smart adjust")
	return true
}

// utilization is the share of logical workers currently executing a task.
func (p *Pool) utilization(cur int) float64 {
	if cur == 0 {
		return 0
	}
	busy := 0
	for i := 0; i < cur && i < len(p.workers); i++ {
		if p.workers[i].active.Load() {
			busy++
		}
	}
	return float64(busy) / float64(cur)
}

// queuePressure is queued tasks over total deque capacity of the logical
// workers.
func (p *Pool) queuePressure(cur int) float64 {
	if cur == 0 {
		return 0
	}
	queued := 0
	for i := 0; i < cur && i < len(p.workers); i++ {
		queued += p.workers[i].deque.Len()
	}
	return float64(queued) / float64(cur*p.queueCap)
}
