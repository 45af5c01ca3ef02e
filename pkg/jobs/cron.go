package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/nvalencia/agentbook/pkg/clients"
	"github.com/nvalencia/agentbook/pkg/database/models"
)

// invitationMaxAge is how long a portal invitation stays redeemable
const invitationMaxAge = 14 * 24 * time.Hour

// CronManager manages scheduled jobs
type CronManager struct {
	cron    *cron.Cron
	db      *gorm.DB
	invites *clients.Service
	logger  *log.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB, invites *clients.Service, logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}
	return &CronManager{
		cron:    cron.New(),
		db:      db,
		invites: invites,
		logger:  logger,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	cm.logger.Println("Setting up cron jobs...")

	// Nightly at 2 AM: expire client invitations older than 14 days
	_, err := cm.cron.AddFunc("0 2 * * *", func() {
		cm.logger.Println("🕐 Running nightly invitation expiry job...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		expired, err := cm.invites.ExpireStaleInvitations(ctx, invitationMaxAge)
		if err != nil {
			cm.logger.Printf("❌ Failed to expire stale invitations: %v", err)
			return
		}

		if expired == 0 {
			cm.logger.Println("✅ No stale invitations found")
			return
		}
		cm.logger.Printf("✅ Expired %d stale invitations", expired)
	})
	if err != nil {
		return err
	}

	// Daily at 4 AM: log book statistics per agency
	_, err = cm.cron.AddFunc("0 4 * * *", func() {
		cm.logger.Println("🕐 Logging book statistics...")

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()

		var rows []struct {
			AgencyID uint
			Count    int64
		}
		err := cm.db.WithContext(ctx).
			Model(&models.Deal{}).
			Select("agency_id, COUNT(*) as count").
			Group("agency_id").
			Find(&rows).Error
		if err != nil {
			cm.logger.Printf("❌ Failed to get book stats: %v", err)
			return
		}

		cm.logger.Printf("📊 Book Statistics:")
		for _, row := range rows {
			cm.logger.Printf("  Agency %d: %d deals", row.AgencyID, row.Count)
		}
	})
	if err != nil {
		return err
	}

	cm.logger.Println("✅ Cron jobs configured successfully")
	cm.logger.Println("  - Nightly at 2 AM: Expire stale client invitations")
	cm.logger.Println("  - Daily at 4 AM: Log book statistics")

	return nil
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Println("🚀 Starting cron scheduler...")
	cm.cron.Start()
}

// Stop stops the cron scheduler
func (cm *CronManager) Stop() {
	cm.logger.Println("🛑 Stopping cron scheduler...")
	cm.cron.Stop()
}
