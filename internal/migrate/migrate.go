package migrate

import (
	"context"

	"warehouse-service/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MigrateOptions struct {
	CreateExtensions       bool // pgcrypto
	CreateChecks           bool // CHECK-инварианты ячеек и заказов
	CreateIndexes          bool // индексы журнала движений
	CreateFKsViaSQL        bool // FK через Exec после AutoMigrate
	CreateUpdatedAtTrigger bool // триггеры updated_at
}

func DefaultMigrateOptions() MigrateOptions {
	return MigrateOptions{
		CreateExtensions:       true,
		CreateChecks:           true,
		CreateIndexes:          true,
		CreateFKsViaSQL:        true,
		CreateUpdatedAtTrigger: true,
	}
}

type step struct {
	name string
	sql  string
}

func MigrateWarehouseDB(ctx context.Context, db *gorm.DB, log *zap.Logger, opt MigrateOptions) error {
	db = db.WithContext(ctx)
	log.Info("Начало миграции базы склада")

	if opt.CreateExtensions {
		log.Info("Создание расширений PostgreSQL")
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
			log.Error("pgcrypto error", zap.Error(err))
			return err
		}
	}

	log.Info("Создание таблиц")
	if err := db.AutoMigrate(
		&models.Category{},
		&models.Product{},
		&models.Warehouse{},
		&models.Location{},
		&models.Inventory{},
		&models.InventoryMovement{},
		&models.ProductionOrder{},
		&models.ProductionOrderItem{},
	); err != nil {
		log.Error("AutoMigrate error", zap.Error(err))
		return err
	}
	log.Info("Таблицы созданы")

	if opt.CreateUpdatedAtTrigger {
		log.Info("Создание триггеров updated_at")
		if err := db.Exec(`
CREATE OR REPLACE FUNCTION set_updated_at() RETURNS trigger AS $$
BEGIN NEW.updated_at = now(); RETURN NEW; END; $$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_products_updated ON products;
CREATE TRIGGER trg_products_updated BEFORE UPDATE ON products
FOR EACH ROW EXECUTE FUNCTION set_updated_at();

DROP TRIGGER IF EXISTS trg_inventories_updated ON inventories;
CREATE TRIGGER trg_inventories_updated BEFORE UPDATE ON inventories
FOR EACH ROW EXECUTE FUNCTION set_updated_at();

DROP TRIGGER IF EXISTS trg_production_orders_updated ON production_orders;
CREATE TRIGGER trg_production_orders_updated BEFORE UPDATE ON production_orders
FOR EACH ROW EXECUTE FUNCTION set_updated_at();
`).Error; err != nil {
			log.Error("triggers error", zap.Error(err))
			return err
		}
		log.Info("Триггеры созданы")
	}

	if opt.CreateChecks {
		log.Info("Создание CHECK-ограничений")
		if err := run(db, log, []step{
			{"chk inventories invariants", `
ALTER TABLE inventories
	DROP CONSTRAINT IF EXISTS chk_inventories_invariants,
	ADD CONSTRAINT chk_inventories_invariants
	CHECK (quantity >= 0 AND reserved >= 0 AND reserved <= quantity AND available = quantity - reserved);`},
			{"chk movements type", `
ALTER TABLE inventory_movements
	DROP CONSTRAINT IF EXISTS chk_inventory_movements_type,
	ADD CONSTRAINT chk_inventory_movements_type
	CHECK (type IN ('IN','OUT','ADJUSTMENT'));`},
			{"chk movements quantity", `
ALTER TABLE inventory_movements
	DROP CONSTRAINT IF EXISTS chk_inventory_movements_quantity,
	ADD CONSTRAINT chk_inventory_movements_quantity
	CHECK ((type = 'ADJUSTMENT' AND quantity <> 0) OR (type <> 'ADJUSTMENT' AND quantity > 0));`},
			{"chk production status", `
ALTER TABLE production_orders
	DROP CONSTRAINT IF EXISTS chk_production_orders_status,
	ADD CONSTRAINT chk_production_orders_status
	CHECK (status IN ('DRAFT','OPEN','IN_PROGRESS','COMPLETED','CANCELLED'));`},
			{"chk production priority", `
ALTER TABLE production_orders
	DROP CONSTRAINT IF EXISTS chk_production_orders_priority,
	ADD CONSTRAINT chk_production_orders_priority
	CHECK (priority BETWEEN 1 AND 5);`},
			{"chk production items qty", `
ALTER TABLE production_order_items
	DROP CONSTRAINT IF EXISTS chk_production_order_items_quantity,
	ADD CONSTRAINT chk_production_order_items_quantity
	CHECK (quantity > 0);`},
			{"chk product type", `
ALTER TABLE products
	DROP CONSTRAINT IF EXISTS chk_products_type,
	ADD CONSTRAINT chk_products_type
	CHECK (type IN ('HOSE','FITTING','ASSEMBLY','ACCESSORY'));`},
		}); err != nil {
			return err
		}
		log.Info("CHECK-и созданы")
	}

	if opt.CreateIndexes {
		log.Info("Создание индексов")
		if err := run(db, log, []step{
			{"ix movements product_created", `
CREATE INDEX IF NOT EXISTS ix_inventory_movements_product_created
ON inventory_movements (product_id, created_at DESC);`},
			{"ix movements reference", `
CREATE INDEX IF NOT EXISTS ix_inventory_movements_reference
ON inventory_movements (reference) WHERE reference IS NOT NULL;`},
			{"ix production orders status_priority", `
CREATE INDEX IF NOT EXISTS ix_production_orders_status_priority
ON production_orders (status, priority, due_date);`},
		}); err != nil {
			return err
		}
		log.Info("Индексы созданы")
	}

	if opt.CreateFKsViaSQL {
		log.Info("Создание внешних ключей")
		if err := run(db, log, []step{
			{"fk products.category_id", `
ALTER TABLE products
  DROP CONSTRAINT IF EXISTS fk_products_category,
  ADD CONSTRAINT fk_products_category
    FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE SET NULL;`},
			{"fk locations.warehouse_id", `
ALTER TABLE locations
  DROP CONSTRAINT IF EXISTS fk_locations_warehouse,
  ADD CONSTRAINT fk_locations_warehouse
    FOREIGN KEY (warehouse_id) REFERENCES warehouses(id) ON DELETE SET NULL;`},
			{"fk inventories.product_id", `
ALTER TABLE inventories
  DROP CONSTRAINT IF EXISTS fk_inventories_product,
  ADD CONSTRAINT fk_inventories_product
    FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE RESTRICT;`},
			{"fk inventories.location_id", `
ALTER TABLE inventories
  DROP CONSTRAINT IF EXISTS fk_inventories_location,
  ADD CONSTRAINT fk_inventories_location
    FOREIGN KEY (location_id) REFERENCES locations(id) ON DELETE RESTRICT;`},
			{"fk movements.product_id", `
ALTER TABLE inventory_movements
  DROP CONSTRAINT IF EXISTS fk_inventory_movements_product,
  ADD CONSTRAINT fk_inventory_movements_product
    FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE RESTRICT;`},
			{"fk movements.location_id", `
ALTER TABLE inventory_movements
  DROP CONSTRAINT IF EXISTS fk_inventory_movements_location,
  ADD CONSTRAINT fk_inventory_movements_location
    FOREIGN KEY (location_id) REFERENCES locations(id) ON DELETE SET NULL;`},
			{"fk production_orders.warehouse_id", `
ALTER TABLE production_orders
  DROP CONSTRAINT IF EXISTS fk_production_orders_warehouse,
  ADD CONSTRAINT fk_production_orders_warehouse
    FOREIGN KEY (warehouse_id) REFERENCES warehouses(id) ON DELETE RESTRICT;`},
			{"fk production_order_items.product_id", `
ALTER TABLE production_order_items
  DROP CONSTRAINT IF EXISTS fk_production_order_items_product,
  ADD CONSTRAINT fk_production_order_items_product
    FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE RESTRICT;`},
			{"fk production_order_items.location_id", `
ALTER TABLE production_order_items
  DROP CONSTRAINT IF EXISTS fk_production_order_items_location,
  ADD CONSTRAINT fk_production_order_items_location
    FOREIGN KEY (location_id) REFERENCES locations(id) ON DELETE RESTRICT;`},
		}); err != nil {
			return err
		}
		log.Info("Внешние ключи созданы")
	}

	log.Info("Миграция базы склада успешно завершена")
	return nil
}

func run(db *gorm.DB, log *zap.Logger, steps []step) error {
	for _, s := range steps {
		if err := db.Exec(s.sql).Error; err != nil {
			log.Error(s.name, zap.Error(err))
			return err
		}
	}
	return nil
}
