package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"ats-scorer-go/internal/config"
	"ats-scorer-go/internal/constants"
	"ats-scorer-go/internal/storage/models"
	"ats-scorer-go/internal/tracing"
)

var mysqlTracer = otel.Tracer("ats-scorer-go/storage/mysql")

// ErrAnalysisNotFound is returned for unknown analysis IDs.
var ErrAnalysisNotFound = errors.New("analysis not found")

type spanKey struct{}

// GormTracingPlugin opens a client span around every GORM operation.
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize registers before/after callbacks for every operation type.
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	type hook struct {
		name, op string
		before   func(string, func(*gorm.DB)) error
		after    func(string, func(*gorm.DB)) error
	}
	hooks := []hook{
		{"create", "CREATE", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", "SELECT", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", "UPDATE", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", "DELETE", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", "ROW", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", "RAW", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		if err := h.before("otel:before_"+h.name, p.before(h.op)); err != nil {
			return err
		}
		if err := h.after("otel:after_"+h.name, p.after()); err != nil {
			return err
		}
	}
	return nil
}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}
		if sql := db.Statement.SQL.String(); sql != "" {
			opts = append(opts, trace.WithAttributes(attribute.String("db.statement", tracing.SafeSQL(sql))))
		}

		newCtx, span := p.tracer.Start(ctx, fmt.Sprintf("%s %s", operation, tableName), opts...)
		db.Statement.Context = context.WithValue(newCtx, spanKey{}, span)
	}
}

func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(spanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", max(db.Statement.RowsAffected, 0)))
		switch {
		case db.Error == nil:
			span.SetStatus(codes.Ok, "")
		case errors.Is(db.Error, gorm.ErrRecordNotFound):
			// not found is an ordinary lookup outcome
			span.SetAttributes(attribute.String("error.type", "record_not_found"))
			span.SetStatus(codes.Ok, "record not found")
		default:
			tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
		}
	}
}

func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// AnalysisRepository persists analyses and their outbox events.
type AnalysisRepository interface {
	CreateAnalysisWithOutbox(ctx context.Context, analysis *models.Analysis, msg *models.OutboxMessage) error
	GetAnalysis(ctx context.Context, analysisID string) (*models.Analysis, error)
	MarkAnalysisProcessing(ctx context.Context, analysisID string) (bool, error)
	CompleteAnalysis(ctx context.Context, analysisID string, result AnalysisOutcome) error
	FailAnalysis(ctx context.Context, analysisID string, reason string) error
}

// AnalysisMaintainer finds and requeues analyses that never finished.
type AnalysisMaintainer interface {
	StaleAnalyses(ctx context.Context, stuckBefore time.Time, includeFailed bool, limit int) ([]models.Analysis, error)
	RequeueAnalysis(ctx context.Context, analysisID string, msg *models.OutboxMessage) (bool, error)
}

// AnalysisOutcome is the scored result written back to an analysis.
type AnalysisOutcome struct {
	Label      string
	TotalScore float64
	Similarity *float64
	ResultJSON []byte
}

var (
	_ AnalysisRepository = (*MySQL)(nil)
	_ AnalysisMaintainer = (*MySQL)(nil)
)

// MySQL stores analyses and outbox messages.
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL connects, installs tracing and migrates the schema.
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mysql config cannot be nil")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	default:
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("register tracing plugin: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg}
	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return m, nil
}

func (m *MySQL) autoMigrateSchema() error {
	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
		},
	)
	return m.db.Session(&gorm.Session{Logger: silentLogger}).AutoMigrate(
		&models.Analysis{},
		&models.OutboxMessage{},
	)
}

func (m *MySQL) DB() *gorm.DB {
	return m.db
}

func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateAnalysisWithOutbox inserts a pending analysis and the event that
// queues it in one transaction.
func (m *MySQL) CreateAnalysisWithOutbox(ctx context.Context, analysis *models.Analysis, msg *models.OutboxMessage) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(analysis).Error; err != nil {
			return fmt.Errorf("insert analysis: %w", err)
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("insert outbox message: %w", err)
		}
		return nil
	})
}

func (m *MySQL) GetAnalysis(ctx context.Context, analysisID string) (*models.Analysis, error) {
	var a models.Analysis
	err := m.db.WithContext(ctx).Where("analysis_id = ?", analysisID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// MarkAnalysisProcessing claims a pending or failed analysis. It reports
// false when the analysis is already processing or done.
func (m *MySQL) MarkAnalysisProcessing(ctx context.Context, analysisID string) (bool, error) {
	res := m.db.WithContext(ctx).Model(&models.Analysis{}).
		Where("analysis_id = ? AND status IN ?", analysisID, []string{constants.StatusPending, constants.StatusFailed}).
		Updates(map[string]any{
			"status":   constants.StatusProcessing,
			"attempts": gorm.Expr("attempts + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (m *MySQL) CompleteAnalysis(ctx context.Context, analysisID string, result AnalysisOutcome) error {
	now := time.Now()
	return m.db.WithContext(ctx).Model(&models.Analysis{}).
		Where("analysis_id = ?", analysisID).
		Updates(map[string]any{
			"status":         constants.StatusCompleted,
			"label":          result.Label,
			"total_score":    result.TotalScore,
			"similarity":     result.Similarity,
			"result_json":    datatypes.JSON(result.ResultJSON),
			"scorer_version": constants.ScorerVersion,
			"error_message":  "",
			"completed_at":   &now,
		}).Error
}

func (m *MySQL) FailAnalysis(ctx context.Context, analysisID string, reason string) error {
	return m.db.WithContext(ctx).Model(&models.Analysis{}).
		Where("analysis_id = ?", analysisID).
		Updates(map[string]any{
			"status":        constants.StatusFailed,
			"error_message": reason,
		}).Error
}

// StaleAnalyses lists analyses left PROCESSING since before stuckBefore,
// plus FAILED ones when includeFailed is set, oldest first.
func (m *MySQL) StaleAnalyses(ctx context.Context, stuckBefore time.Time, includeFailed bool, limit int) ([]models.Analysis, error) {
	q := m.db.WithContext(ctx).Model(&models.Analysis{})
	stuck := m.db.Where("status = ? AND updated_at < ?", constants.StatusProcessing, stuckBefore)
	if includeFailed {
		q = q.Where(stuck.Or("status = ?", constants.StatusFailed))
	} else {
		q = q.Where(stuck)
	}
	var analyses []models.Analysis
	err := q.Order("updated_at asc").Limit(limit).Find(&analyses).Error
	if err != nil {
		return nil, fmt.Errorf("query stale analyses: %w", err)
	}
	return analyses, nil
}

// RequeueAnalysis resets a processing or failed analysis to PENDING with a
// fresh attempt budget and inserts msg in the same transaction. It reports
// false when the analysis has moved on in the meantime.
func (m *MySQL) RequeueAnalysis(ctx context.Context, analysisID string, msg *models.OutboxMessage) (bool, error) {
	requeued := false
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Analysis{}).
			Where("analysis_id = ? AND status IN ?", analysisID, []string{constants.StatusProcessing, constants.StatusFailed}).
			Updates(map[string]any{
				"status":        constants.StatusPending,
				"attempts":      0,
				"error_message": "",
			})
		if res.Error != nil {
			return fmt.Errorf("reset analysis: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("insert outbox message: %w", err)
		}
		requeued = true
		return nil
	})
	return requeued, err
}

// PendingOutbox locks up to limit pending outbox messages, oldest first,
// skipping rows another relay holds.
func PendingOutbox(tx *gorm.DB, limit int) ([]models.OutboxMessage, error) {
	var messages []models.OutboxMessage
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", constants.OutboxPending).
		Order("created_at asc").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}
