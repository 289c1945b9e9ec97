package dao

import (
	"fmt"

	"gorm.io/gorm"
)

// Immutability is enforced by the database as well as by the gorm hooks so
// that raw SQL and other clients cannot bypass it. 23001 is restrict_violation.
var triggerStatements = []string{
	`CREATE OR REPLACE FUNCTION reject_mutation() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION '% on % is not allowed', TG_OP, TG_TABLE_NAME USING ERRCODE = '23001';
	END;
	$$ LANGUAGE plpgsql`,
	`CREATE OR REPLACE FUNCTION reject_terminal_purchase_update() RETURNS trigger AS $$
	BEGIN
		IF OLD.status <> 'PendingApproval' THEN
			RAISE EXCEPTION 'purchase % is already %', OLD.id, OLD.status USING ERRCODE = '23001';
		END IF;
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS gmc_records_immutable ON gmc_records`,
	`CREATE TRIGGER gmc_records_immutable BEFORE UPDATE OR DELETE ON gmc_records
		FOR EACH ROW EXECUTE FUNCTION reject_mutation()`,
	`DROP TRIGGER IF EXISTS audit_events_append_only ON audit_events`,
	`CREATE TRIGGER audit_events_append_only BEFORE UPDATE OR DELETE ON audit_events
		FOR EACH ROW EXECUTE FUNCTION reject_mutation()`,
	`DROP TRIGGER IF EXISTS recognition_evaluations_immutable ON recognition_evaluations`,
	`CREATE TRIGGER recognition_evaluations_immutable BEFORE UPDATE OR DELETE ON recognition_evaluations
		FOR EACH ROW EXECUTE FUNCTION reject_mutation()`,
	`DROP TRIGGER IF EXISTS mc_records_no_delete ON mc_records`,
	`CREATE TRIGGER mc_records_no_delete BEFORE DELETE ON mc_records
		FOR EACH ROW EXECUTE FUNCTION reject_mutation()`,
	`DROP TRIGGER IF EXISTS store_purchases_terminal ON store_purchases`,
	`CREATE TRIGGER store_purchases_terminal BEFORE UPDATE ON store_purchases
		FOR EACH ROW EXECUTE FUNCTION reject_terminal_purchase_update()`,
}

func InitTables(db *gorm.DB) error {
	err := db.AutoMigrate(
		&MCRecord{},
		&GMCRecord{},
		&Wallet{},
		&StoreItem{},
		&StorePurchase{},
		&PurchaseCounter{},
		&UserRestriction{},
		&AuctionEvent{},
		&AuctionParticipation{},
		&RecognitionEvaluation{},
		&AuditEvent{},
	)
	if err != nil {
		return fmt.Errorf("db.AutoMigrate -> %w", err)
	}

	for _, stmt := range triggerStatements {
		if err = db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("db.Exec -> %w", err)
		}
	}

	return nil
}
