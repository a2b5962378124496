package order

import "github.com/imamnura/warung-enin-sub000/internal/database/models"

// Legal order-status transitions. Anything not listed here is a
// conflict, and the terminal states have no exits.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPlaced: {
		models.OrderPaymentPending,
		models.OrderProcessing,
		models.OrderCancelled,
	},
	models.OrderPaymentPending: {
		models.OrderProcessing,
		models.OrderCancelled,
	},
	models.OrderProcessing: {
		models.OrderOnDelivery,
		models.OrderReadyForPickup,
		// Cash confirmed at the counter settles and completes in one
		// step, skipping the fulfilment statuses.
		models.OrderCompleted,
		models.OrderCancelled,
	},
	models.OrderOnDelivery: {
		models.OrderCompleted,
		models.OrderCancelled,
	},
	models.OrderReadyForPickup: {
		models.OrderCompleted,
		models.OrderCancelled,
	},
	models.OrderCompleted: {},
	models.OrderCancelled: {},
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var nonTerminal = []models.OrderStatus{
	models.OrderPlaced,
	models.OrderPaymentPending,
	models.OrderProcessing,
	models.OrderOnDelivery,
	models.OrderReadyForPickup,
}
