// internal/syncer/reconcile.go
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-analytics/internal/config"
	"github.com/javajoker/storefront-analytics/internal/database"
	"github.com/javajoker/storefront-analytics/internal/metrics"
	"github.com/javajoker/storefront-analytics/internal/models"
	"github.com/javajoker/storefront-analytics/internal/providers"
	"github.com/javajoker/storefront-analytics/internal/repositories"
	"github.com/javajoker/storefront-analytics/internal/variation"
)

type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

type OrderOutcome struct {
	ProviderOrderID int64   `json:"provider_order_id"`
	Outcome         Outcome `json:"outcome"`
	CreatedItems    int     `json:"created_items"`
	DroppedItems    int     `json:"dropped_items"`
	Reason          string  `json:"reason,omitempty"`
}

// Skipped is true when the parent order was not stored yet.
func (o OrderOutcome) Skipped() bool {
	return o.Outcome == OutcomeSkipped
}

type ReconcileSummary struct {
	Processed    int            `json:"processed"`
	CreatedItems int            `json:"created_items"`
	DroppedItems int            `json:"dropped_items"`
	Skipped      int            `json:"skipped"`
	Failed       int            `json:"failed"`
	Outcomes     []OrderOutcome `json:"-"`
}

func (s *ReconcileSummary) add(o OrderOutcome) {
	s.Processed++
	s.CreatedItems += o.CreatedItems
	s.DroppedItems += o.DroppedItems
	switch o.Outcome {
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
	s.Outcomes = append(s.Outcomes, o)
}

// Reconciler rebuilds order items from fetched orders once the parent orders
// are stored. Each order is its own transaction; one failing order never
// stops its siblings.
type Reconciler struct {
	db        *gorm.DB
	engine    *variation.Engine
	batchSize int
	log       logrus.FieldLogger
}

func NewReconciler(db *gorm.DB, engine *variation.Engine, batchSize int, log logrus.FieldLogger) *Reconciler {
	if batchSize < 1 {
		batchSize = config.DefaultBatchSize
	}
	return &Reconciler{
		db:        db,
		engine:    engine,
		batchSize: batchSize,
		log:       log.WithField("operation", "reconcile-order-items"),
	}
}

func (r *Reconciler) Reconcile(ctx context.Context, provider config.ProviderConfig, orders []providers.OrderPayload) ReconcileSummary {
	log := r.log.WithField("provider", provider.Name)
	var summary ReconcileSummary

	batches := CreateBatches(orders, r.batchSize)
	for i, batch := range batches {
		log.WithFields(logrus.Fields{
			"batch":   i + 1,
			"batches": len(batches),
			"orders":  len(batch),
		}).Debug("Reconciling order batch")

		for _, order := range batch {
			var outcome OrderOutcome
			if err := ctx.Err(); err != nil {
				outcome = OrderOutcome{ProviderOrderID: order.OrderID, Outcome: OutcomeFailed, Reason: err.Error()}
			} else {
				outcome = r.ReconcileOrder(ctx, provider, order)
			}
			if outcome.Outcome == OutcomeFailed {
				log.WithFields(logrus.Fields{
					"order_id": order.OrderID,
					"reason":   outcome.Reason,
				}).Error("Failed to reconcile order items")
			}
			metrics.RecordReconcileOutcome(provider.Name, string(outcome.Outcome))
			summary.add(outcome)
		}
	}

	log.WithFields(logrus.Fields{
		"processed":     summary.Processed,
		"created_items": summary.CreatedItems,
		"dropped_items": summary.DroppedItems,
		"skipped":       summary.Skipped,
		"failed":        summary.Failed,
	}).Info("Order item reconciliation finished")
	return summary
}

// ReconcileOrder replaces the stored items of one order. An empty item list
// clears them.
func (r *Reconciler) ReconcileOrder(ctx context.Context, provider config.ProviderConfig, order providers.OrderPayload) (outcome OrderOutcome) {
	outcome = OrderOutcome{ProviderOrderID: order.OrderID, Outcome: OutcomeOK}

	defer func() {
		if rec := recover(); rec != nil {
			outcome = OrderOutcome{ProviderOrderID: order.OrderID, Outcome: OutcomeFailed, Reason: fmt.Sprintf("panic: %v", rec)}
		}
	}()

	stored, err := repositories.NewOrderRepository(r.db).FindByNaturalKey(ctx, provider.Name, order.OrderID)
	if err != nil {
		outcome.Outcome, outcome.Reason = OutcomeFailed, err.Error()
		return outcome
	}
	if stored == nil {
		outcome.Outcome, outcome.Reason = OutcomeSkipped, "order not stored"
		return outcome
	}

	// Rough per-item price: the raw order total spread evenly over its lines.
	var unitPrice float64
	if len(order.Items) > 0 {
		unitPrice = order.TotalPrice / float64(len(order.Items))
	}
	syncedAt := time.Now().UTC()

	err = database.WithTransaction(r.db.WithContext(ctx), func(tx *gorm.DB) error {
		items := repositories.NewOrderItemRepository(tx)
		if err := items.DeleteByOrder(ctx, stored.ID); err != nil {
			return err
		}

		nativeIDs := make([]int64, 0, len(order.Items))
		for _, item := range order.Items {
			nativeIDs = append(nativeIDs, item.ProductID)
		}
		productIDs, err := repositories.NewProductRepository(tx).ResolveIDs(ctx, provider.Name, nativeIDs)
		if err != nil {
			return err
		}

		rows := make([]models.OrderItem, 0, len(order.Items))
		dropped := 0
		for _, item := range order.Items {
			productID, ok := productIDs[item.ProductID]
			if !ok {
				dropped++
				continue
			}
			rows = append(rows, models.OrderItem{
				OrderID:           stored.ID,
				ProductID:         productID,
				Quantity:          r.engine.VaryQuantity(item.Quantity, provider.Variations.Quantity),
				UnitPriceSnapshot: r.engine.VaryUnitPrice(unitPrice, provider.Variations),
				SyncedAt:          syncedAt,
			})
		}
		if err := items.CreateMany(ctx, rows); err != nil {
			return err
		}

		outcome.CreatedItems = len(rows)
		outcome.DroppedItems = dropped
		return nil
	})
	if err != nil {
		return OrderOutcome{ProviderOrderID: order.OrderID, Outcome: OutcomeFailed, Reason: err.Error()}
	}
	return outcome
}
