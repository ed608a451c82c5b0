package businessflow

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/taptag/app/dto"
	"github.com/amirphl/taptag/config"
	"github.com/amirphl/taptag/models"
	"github.com/amirphl/taptag/repository"
	"github.com/amirphl/taptag/utils"
	"github.com/lib/pq"
	"github.com/xuri/excelize/v2"
)

const salesSheetName = "sales"

// SaleFlow exposes the sale ledger. Amounts are written once at activation and never change here.
type SaleFlow interface {
	ListSales(ctx context.Context, req *dto.ListSalesRequest, actor Actor) (*dto.ListSalesResponse, error)
	GetSale(ctx context.Context, id uint, actor Actor) (*dto.SaleDTO, error)
	CreateSale(ctx context.Context, req *dto.CreateSaleRequest, actor Actor, metadata *ClientMetadata) (*dto.SaleDTO, error)
	UpdateStatus(ctx context.Context, id uint, req *dto.UpdateSaleStatusRequest, actor Actor, metadata *ClientMetadata) (*dto.SaleDTO, error)
	AppendMessage(ctx context.Context, id uint, req *dto.AppendSaleMessageRequest, actor Actor, metadata *ClientMetadata) (*dto.SaleDTO, error)
	ExportSales(ctx context.Context, req *dto.ListSalesRequest, actor Actor) (string, []byte, error)
}

type SaleFlowImpl struct {
	saleRepo  repository.SaleRepository
	tagRepo   repository.TagRepository
	userRepo  repository.UserRepository
	txManager repository.TxManager
	cfg       *config.ProductionConfig
	logger    *log.Logger
	audit     auditRecorder
	now       clock
}

func NewSaleFlow(
	saleRepo repository.SaleRepository,
	tagRepo repository.TagRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	txManager repository.TxManager,
	cfg *config.ProductionConfig,
	logger *log.Logger,
) SaleFlow {
	return &SaleFlowImpl{
		saleRepo:  saleRepo,
		tagRepo:   tagRepo,
		userRepo:  userRepo,
		txManager: txManager,
		cfg:       cfg,
		logger:    logger,
		audit:     auditRecorder{repo: auditRepo, logger: logger},
		now:       utils.UTCNow,
	}
}

func (f *SaleFlowImpl) ListSales(ctx context.Context, req *dto.ListSalesRequest, actor Actor) (*dto.ListSalesResponse, error) {
	page, limit, err := normalizePage(req.Page, req.Limit)
	if err != nil {
		return nil, toBusinessError(err, "", "")
	}
	filter, err := saleFilterFor(req, actor)
	if err != nil {
		return nil, toBusinessError(err, "", "")
	}

	total, err := f.saleRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_SALES_FAILED", "Failed to list sales", err)
	}
	rows, err := f.saleRepo.ByFilter(ctx, filter, "id DESC", limit, (page-1)*limit)
	if err != nil {
		return nil, NewBusinessError("LIST_SALES_FAILED", "Failed to list sales", err)
	}

	items := make([]dto.SaleDTO, 0, len(rows))
	for _, s := range rows {
		items = append(items, ToSaleDTO(s))
	}
	return &dto.ListSalesResponse{Items: items, Pagination: buildPagination(total, page, limit)}, nil
}

func (f *SaleFlowImpl) GetSale(ctx context.Context, id uint, actor Actor) (*dto.SaleDTO, error) {
	sale, err := f.saleRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("GET_SALE_FAILED", "Failed to load sale", err)
	}
	if sale == nil {
		return nil, toBusinessError(ErrSaleNotFound, "", "")
	}
	if !canViewSale(actor, sale) {
		// hide existence from other affiliates
		return nil, toBusinessError(ErrSaleNotFound, "", "")
	}
	out := ToSaleDTO(sale)
	return &out, nil
}

// CreateSale records a sale by hand for an activated tag that has none. The split
// uses the salesperson's current commission profile, as an activation would.
func (f *SaleFlowImpl) CreateSale(ctx context.Context, req *dto.CreateSaleRequest, actor Actor, metadata *ClientMetadata) (*dto.SaleDTO, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, toBusinessError(ErrMessageRequired, "", "")
	}
	total := f.cfg.Commission.DefaultTotalSaleAmount
	if req.TotalSaleAmount != nil {
		total = *req.TotalSaleAmount
	}
	cost := f.cfg.Commission.DefaultCostAmount
	if req.CostAmount != nil {
		cost = *req.CostAmount
	}
	saleType := models.SaleTypeNotConfirmed
	if req.SaleType != nil {
		saleType = models.SaleType(*req.SaleType)
		if !saleType.IsValid() {
			return nil, toBusinessError(ErrInvalidStatus, "", "")
		}
	}

	tag, err := resolveTagRef(ctx, f.tagRepo, req.Tag)
	if err != nil {
		return nil, toBusinessError(err, "CREATE_SALE_FAILED", "Failed to record sale")
	}

	var sale *models.Sale
	err = f.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		locked, err := f.tagRepo.ByIDForUpdate(txCtx, tag.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrTagNotFound
		}
		if locked.IsArchived() {
			return ErrTagArchived
		}
		if !locked.IsActivated() || locked.OwnerAssignedTo == nil {
			return ErrTagNotActivated
		}
		existing, err := f.saleRepo.ByTagID(txCtx, locked.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrSaleAlreadyExists
		}

		attribution, err := resolveAttribution(txCtx, f.userRepo, actor, locked, f.cfg.Commission.AdminFallback)
		if err != nil {
			return err
		}
		split, err := ComputeCommission(total, cost, attribution.Percentage)
		if err != nil {
			return err
		}

		sale = &models.Sale{
			TagID:                          locked.ID,
			OwnerID:                        *locked.OwnerAssignedTo,
			SalesPersonID:                  attribution.SalesPersonID,
			SalesPersonRole:                attribution.SalesPersonRole,
			SaleDate:                       f.now(),
			SaleType:                       saleType,
			TotalSaleAmount:                split.Total,
			CommissionAmountOfSalesPerson:  split.SalesPerson,
			CommissionAmountOfOwner:        split.Owner,
			CostAmountOfProductAndServices: split.Cost,
			CommissionPercentage:           split.Percentage,
			PaymentStatus:                  models.SaleStatusPending,
			VerificationStatus:             models.SaleStatusPending,
			Messages:                       pq.StringArray{msg},
			CreatedBy:                      &actor.ID,
			UpdatedBy:                      &actor.ID,
		}
		return f.saleRepo.Save(txCtx, sale)
	})
	if repository.IsUniqueViolation(err, repository.ConstraintSaleTagID) {
		err = ErrSaleAlreadyExists
	}
	if err != nil {
		return nil, toBusinessError(err, "CREATE_SALE_FAILED", "Failed to record sale")
	}

	f.audit.record(ctx, &actor.ID, models.AuditActionSaleRecorded,
		fmt.Sprintf("Sale %d recorded by hand for tag %s", sale.ID, tag.ShortCode), true, nil, metadata,
		map[string]any{"sale_id": sale.ID, "tag_id": tag.ID})
	out := ToSaleDTO(sale)
	return &out, nil
}

// UpdateStatus corrects payment and verification state and appends the reason to the sale's messages
func (f *SaleFlowImpl) UpdateStatus(ctx context.Context, id uint, req *dto.UpdateSaleStatusRequest, actor Actor, metadata *ClientMetadata) (*dto.SaleDTO, error) {
	update := repository.SaleStatusUpdate{
		PaymentProofRef: req.PaymentProofRef,
		Message:         strings.TrimSpace(req.Message),
		UpdatedBy:       actor.ID,
	}
	if update.Message == "" {
		return nil, toBusinessError(ErrMessageRequired, "", "")
	}
	if req.PaymentStatus != nil {
		s := models.SaleStatus(*req.PaymentStatus)
		if !s.IsValid() {
			return nil, toBusinessError(ErrInvalidStatus, "", "")
		}
		update.PaymentStatus = &s
	}
	if req.VerificationStatus != nil {
		s := models.SaleStatus(*req.VerificationStatus)
		if !s.IsValid() {
			return nil, toBusinessError(ErrInvalidStatus, "", "")
		}
		update.VerificationStatus = &s
	}

	sale, err := f.mutateSale(ctx, id, func(txCtx context.Context) error {
		return f.saleRepo.UpdateStatuses(txCtx, id, update)
	})
	if err != nil {
		return nil, toBusinessError(err, "UPDATE_SALE_FAILED", "Failed to update sale status")
	}

	f.audit.record(ctx, &actor.ID, models.AuditActionSaleStatusCorrected,
		fmt.Sprintf("Sale %d corrected: payment=%s verification=%s", sale.ID, sale.PaymentStatus, sale.VerificationStatus),
		true, nil, metadata, map[string]any{"sale_id": sale.ID})
	out := ToSaleDTO(sale)
	return &out, nil
}

func (f *SaleFlowImpl) AppendMessage(ctx context.Context, id uint, req *dto.AppendSaleMessageRequest, actor Actor, metadata *ClientMetadata) (*dto.SaleDTO, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, toBusinessError(ErrMessageRequired, "", "")
	}
	sale, err := f.mutateSale(ctx, id, func(txCtx context.Context) error {
		return f.saleRepo.AppendMessage(txCtx, id, msg, actor.ID)
	})
	if err != nil {
		return nil, toBusinessError(err, "APPEND_SALE_MESSAGE_FAILED", "Failed to append sale message")
	}

	f.audit.record(ctx, &actor.ID, models.AuditActionSaleMessageAppended,
		fmt.Sprintf("Message appended to sale %d", sale.ID), true, nil, metadata, map[string]any{"sale_id": sale.ID})
	out := ToSaleDTO(sale)
	return &out, nil
}

// mutateSale runs fn against an existing sale and returns the row as stored afterwards
func (f *SaleFlowImpl) mutateSale(ctx context.Context, id uint, fn func(context.Context) error) (*models.Sale, error) {
	var sale *models.Sale
	err := f.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := f.saleRepo.ByID(txCtx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrSaleNotFound
		}
		if err := fn(txCtx); err != nil {
			return err
		}
		sale, err = f.saleRepo.ByID(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// ExportSales writes every sale matching the filter to a single sheet workbook
func (f *SaleFlowImpl) ExportSales(ctx context.Context, req *dto.ListSalesRequest, actor Actor) (string, []byte, error) {
	filter, err := saleFilterFor(req, actor)
	if err != nil {
		return "", nil, toBusinessError(err, "", "")
	}
	rows, err := f.saleRepo.ByFilter(ctx, filter, "id ASC", 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_SALES_FAILED", "Failed to fetch sales", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()
	xl.SetSheetName(xl.GetSheetName(0), salesSheetName)

	header := []string{
		"id", "tag_id", "owner_id", "sales_person_id", "sales_person_role", "sale_date", "sale_type",
		"total_sale_amount", "sales_person_commission", "owner_commission", "cost", "commission_percentage",
		"payment_status", "verification_status", "payment_proof_ref", "messages",
	}
	if err := xl.SetSheetRow(salesSheetName, "A1", &header); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	for i, s := range rows {
		salesPerson, role, proof := "", "", ""
		if s.SalesPersonID != nil {
			salesPerson = strconv.FormatUint(uint64(*s.SalesPersonID), 10)
		}
		if s.SalesPersonRole != nil {
			role = string(*s.SalesPersonRole)
		}
		if s.PaymentProofRef != nil {
			proof = *s.PaymentProofRef
		}
		record := []string{
			strconv.FormatUint(uint64(s.ID), 10),
			strconv.FormatUint(uint64(s.TagID), 10),
			strconv.FormatUint(uint64(s.OwnerID), 10),
			salesPerson,
			role,
			s.SaleDate.UTC().Format(time.RFC3339),
			string(s.SaleType),
			utils.FormatMinor(s.TotalSaleAmount),
			utils.FormatMinor(s.CommissionAmountOfSalesPerson),
			utils.FormatMinor(s.CommissionAmountOfOwner),
			utils.FormatMinor(s.CostAmountOfProductAndServices),
			s.CommissionPercentage.StringFixed(2),
			string(s.PaymentStatus),
			string(s.VerificationStatus),
			proof,
			strings.Join(s.Messages, " | "),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := xl.SetSheetRow(salesSheetName, cellRef, &record); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("sales_%s.xlsx", f.now().Format("20060102_150405"))
	return filename, buf.Bytes(), nil
}

// saleFilterFor builds the query filter; an affiliate only ever sees its own sales
func saleFilterFor(req *dto.ListSalesRequest, actor Actor) (models.SaleFilter, error) {
	filter := models.SaleFilter{
		SalesPersonID: req.SalesPersonID,
		OwnerID:       req.OwnerID,
		TagID:         req.TagID,
	}
	switch actor.Role {
	case models.UserRoleAffiliate:
		id := actor.ID
		filter.SalesPersonID = &id
	case models.UserRoleSupportAdmin, models.UserRoleAdmin, models.UserRoleSuperAdmin:
	default:
		return filter, ErrForbidden
	}

	if req.PaymentStatus != nil && *req.PaymentStatus != "" {
		s := models.SaleStatus(*req.PaymentStatus)
		if !s.IsValid() {
			return filter, ErrInvalidStatus
		}
		filter.PaymentStatus = &s
	}
	if req.VerificationStatus != nil && *req.VerificationStatus != "" {
		s := models.SaleStatus(*req.VerificationStatus)
		if !s.IsValid() {
			return filter, ErrInvalidStatus
		}
		filter.VerificationStatus = &s
	}
	if req.Role != nil && *req.Role != "" {
		role, ok := models.ParseUserRole(*req.Role)
		if !ok {
			return filter, ErrInvalidRole
		}
		filter.SalesPersonRole = &role
	}
	return filter, nil
}

func canViewSale(actor Actor, sale *models.Sale) bool {
	if actor.Role.IsAdministrative() {
		return true
	}
	return actor.Role == models.UserRoleAffiliate && sale.SalesPersonID != nil && *sale.SalesPersonID == actor.ID
}
