package transactions

import (
	"log"
	"time"
)

// CleanupOld deletes every transaction created before cutoff and returns
// the number of orders cleaned. Age is judged on the stored creation
// timestamp; transactions without one are left alone.
func (s *Service) CleanupOld(cutoff time.Time) (int, error) {
	orderIDs, err := s.store.OrderIDsCreatedBefore(cutoff)
	if err != nil {
		return 0, err
	}
	cleaned := 0
	for _, orderID := range orderIDs {
		if err := s.store.DeleteAll(orderID); err != nil {
			log.Printf("cleanup: delete order %d failed: %v", orderID, err)
			continue
		}
		cleaned++
	}
	return cleaned, nil
}

// RepairDuplicates finds orders carrying more than one transaction id —
// leftovers from creation races — wipes their PIX attributes and recreates
// a single transaction whose status is inferred from the current order
// status. Only bank-transfer orders are touched. It returns the number of
// orders examined and the number repaired.
func (s *Service) RepairDuplicates() (processed, cleaned int, err error) {
	orderIDs, err := s.store.OrderIDs()
	if err != nil {
		return 0, 0, err
	}

	for _, orderID := range orderIDs {
		processed++

		ids, err := s.store.TransactionIDs(orderID)
		if err != nil {
			log.Printf("repair: scan order %d failed: %v", orderID, err)
			continue
		}
		if len(ids) <= 1 {
			continue
		}

		order, err := s.orders.Get(orderID)
		if err != nil {
			log.Printf("repair: order %d lookup failed: %v", orderID, err)
			continue
		}
		if !order.UsesBankTransfer() {
			continue
		}

		if err := s.store.DeleteAll(orderID); err != nil {
			log.Printf("repair: wipe order %d failed: %v", orderID, err)
			continue
		}
		if _, _, err := s.Create(orderID, StatusFromOrder(order.Status)); err != nil {
			log.Printf("repair: recreate order %d failed: %v", orderID, err)
			continue
		}
		cleaned++
	}
	return processed, cleaned, nil
}
