package transfers

import "github.com/denysvitali/megacmd-runtime-go/internal/models"

// Subscribe returns a channel that receives the full record set after every
// reconciliation, plus a func to unsubscribe. A subscriber that falls behind
// misses intermediate snapshots rather than blocking the monitor.
func (m *Monitor) Subscribe(buffer int) (<-chan []models.TransferRecord, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan []models.TransferRecord, buffer)

	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	return ch, func() { m.unsubscribe(ch) }
}

func (m *Monitor) unsubscribe(ch chan []models.TransferRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[ch]; ok {
		delete(m.subs, ch)
		close(ch)
	}
}

// SubscriberCount returns the number of active subscribers
func (m *Monitor) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

func (m *Monitor) publish(subs []chan []models.TransferRecord, snapshot []models.TransferRecord) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range subs {
		if _, ok := m.subs[ch]; !ok {
			continue
		}
		cp := append([]models.TransferRecord(nil), snapshot...)
		select {
		case ch <- cp:
		default:
			m.logger.Debug("Transfer subscriber is behind, dropping snapshot")
		}
	}
}
