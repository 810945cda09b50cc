package commerce

import (
	"github.com/ManuelReschke/PixOffline/app/models"
	"gorm.io/gorm"
)

type gormOrders struct {
	db *gorm.DB
}

// New creates an Orders collaborator backed by the platform's GORM tables.
func New(db *gorm.DB) Orders {
	return &gormOrders{db: db}
}

func (g *gormOrders) Get(orderID uint) (Order, error) {
	var o models.Order
	if err := g.db.First(&o, orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	return Order{
		ID:            o.ID,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		CustomerID:    o.CustomerID,
		Total:         o.Total,
	}, nil
}

func (g *gormOrders) Children(parentOrderID uint) ([]uint, error) {
	var ids []uint
	err := g.db.Model(&models.Order{}).
		Where("parent_order_id = ?", parentOrderID).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (g *gormOrders) AddNote(orderID uint, note string) error {
	return g.db.Create(&models.OrderNote{OrderID: orderID, Note: note}).Error
}

func (g *gormOrders) SetStatus(orderID uint, status, note string) error {
	res := g.db.Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	if note == "" {
		return nil
	}
	return g.AddNote(orderID, note)
}

func (g *gormOrders) DeleteCustomer(customerID uint) error {
	if customerID == 0 {
		return nil
	}
	var c models.Customer
	if err := g.db.First(&c, customerID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}
	if c.IsAdmin {
		return nil
	}
	return g.db.Delete(&models.Customer{}, customerID).Error
}
