package businessflow

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"strings"

	"github.com/amirphl/taptag/app/dto"
	"github.com/amirphl/taptag/app/services"
	"github.com/amirphl/taptag/config"
	"github.com/amirphl/taptag/models"
	"github.com/amirphl/taptag/repository"
	"github.com/amirphl/taptag/utils"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// maxShortCodeRetries bounds collision retries for a single short code
const maxShortCodeRetries = 10

// TagFlow covers the inventory side of tags: generation, assignment, archive and scanning
type TagFlow interface {
	BulkGenerate(ctx context.Context, req *dto.BulkGenerateTagsRequest, actor Actor, metadata *ClientMetadata) (*dto.BulkGenerateTagsResponse, error)
	ListTags(ctx context.Context, req *dto.ListTagsRequest) (*dto.ListTagsResponse, error)
	Summary(ctx context.Context) (*dto.TagSummaryResponse, error)
	AssignTags(ctx context.Context, req *dto.AssignTagsRequest, actor Actor, metadata *ClientMetadata) (*dto.AssignTagsResponse, error)
	ArchiveTag(ctx context.Context, shortCode string, actor Actor, metadata *ClientMetadata) (*dto.TagDTO, error)
	StickerPNG(ctx context.Context, shortCode string) ([]byte, error)
	PublicScan(ctx context.Context, shortCode string) (*dto.PublicTagResponse, error)
	VerifyTagForSale(ctx context.Context, shortCode string) (*dto.VerifyTagForSaleResponse, error)
}

type TagFlowImpl struct {
	tagRepo   repository.TagRepository
	ownerRepo repository.TagOwnerRepository
	userRepo  repository.UserRepository
	saleRepo  repository.SaleRepository
	txManager repository.TxManager
	qr        services.QRService
	cfg       *config.ProductionConfig
	logger    *log.Logger
	audit     auditRecorder
	now       clock
	randRead  func([]byte) (int, error)
}

func NewTagFlow(
	tagRepo repository.TagRepository,
	ownerRepo repository.TagOwnerRepository,
	userRepo repository.UserRepository,
	saleRepo repository.SaleRepository,
	auditRepo repository.AuditLogRepository,
	txManager repository.TxManager,
	qr services.QRService,
	cfg *config.ProductionConfig,
	logger *log.Logger,
) TagFlow {
	return &TagFlowImpl{
		tagRepo:   tagRepo,
		ownerRepo: ownerRepo,
		userRepo:  userRepo,
		saleRepo:  saleRepo,
		txManager: txManager,
		qr:        qr,
		cfg:       cfg,
		logger:    logger,
		audit:     auditRecorder{repo: auditRepo, logger: logger},
		now:       utils.UTCNow,
		randRead:  rand.Read,
	}
}

// BulkGenerate creates count tags with fresh identifiers and stored QR images in one transaction
func (f *TagFlowImpl) BulkGenerate(ctx context.Context, req *dto.BulkGenerateTagsRequest, actor Actor, metadata *ClientMetadata) (*dto.BulkGenerateTagsResponse, error) {
	maxCount := f.cfg.Tags.MaxBulkCount
	if maxCount <= 0 || maxCount > utils.MaxBulkTagCount {
		maxCount = utils.MaxBulkTagCount
	}
	if req.Count < 1 || req.Count > maxCount {
		return nil, toBusinessError(ErrInvalidBulkCount, "", "")
	}

	batchName := utils.DefaultBatchName(f.now())
	if req.BatchName != nil && strings.TrimSpace(*req.BatchName) != "" {
		batchName = strings.TrimSpace(*req.BatchName)
	}

	var tags []*models.Tag
	err := f.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		seen := make(map[string]struct{}, req.Count)
		tags = make([]*models.Tag, 0, req.Count)
		for range req.Count {
			code, err := f.uniqueShortCode(txCtx, seen)
			if err != nil {
				return err
			}
			shortURL := strings.TrimRight(f.cfg.Tags.PublicBaseURL, "/") + utils.ShortURLPathPrefix + code
			png, err := f.qr.PNG(shortURL)
			if err != nil {
				return fmt.Errorf("render qr for %s: %w", code, err)
			}
			tags = append(tags, &models.Tag{
				TagID:       uuid.New(),
				ShortCode:   code,
				ShortURL:    shortURL,
				QRCode:      png,
				Status:      models.TagStatusGenerated,
				BatchName:   batchName,
				Metadata:    datatypes.JSONMap{"generated_by": actor.ID},
				GeneratedBy: &actor.ID,
			})
		}
		return f.tagRepo.SaveBatch(txCtx, tags)
	})
	if err != nil {
		if repository.IsUniqueViolation(err, repository.ConstraintTagShortCode) {
			err = fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
		}
		return nil, toBusinessError(err, "TAG_GENERATION_FAILED", "Failed to generate tags")
	}
	tagsGeneratedTotal.Add(float64(len(tags)))

	f.audit.record(ctx, &actor.ID, models.AuditActionTagsGenerated,
		fmt.Sprintf("Generated %d tags in batch %s", len(tags), batchName), true, nil, metadata,
		map[string]any{"batch_name": batchName, "count": len(tags)})

	out := make([]dto.TagDTO, 0, len(tags))
	for _, t := range tags {
		out = append(out, ToTagDTO(t))
	}
	return &dto.BulkGenerateTagsResponse{BatchName: batchName, Count: len(out), Tags: out}, nil
}

func (f *TagFlowImpl) uniqueShortCode(ctx context.Context, seen map[string]struct{}) (string, error) {
	for range maxShortCodeRetries {
		code, err := f.newShortCode()
		if err != nil {
			return "", err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		existing, err := f.tagRepo.ByShortCode(ctx, code)
		if err != nil {
			return "", err
		}
		if existing != nil {
			continue
		}
		seen[code] = struct{}{}
		return code, nil
	}
	return "", fmt.Errorf("could not allocate a unique short code after %d attempts", maxShortCodeRetries)
}

// newShortCode draws random bytes and keeps the first characters of their url-safe encoding
func (f *TagFlowImpl) newShortCode() (string, error) {
	buf := make([]byte, utils.ShortCodeRandomBytes)
	if _, err := f.randRead(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	code := base64.RawURLEncoding.EncodeToString(buf)
	return strings.ToLower(code[:utils.ShortCodeLength]), nil
}

func (f *TagFlowImpl) ListTags(ctx context.Context, req *dto.ListTagsRequest) (*dto.ListTagsResponse, error) {
	page, limit, err := normalizePage(req.Page, req.Limit)
	if err != nil {
		return nil, toBusinessError(err, "", "")
	}

	filter := models.TagFilter{
		BatchName:  req.BatchName,
		AssignedTo: req.AssignedTo,
		Search:     req.Search,
	}
	if req.Status != nil && *req.Status != "" {
		status := models.TagStatus(*req.Status)
		if !status.IsValid() {
			return nil, toBusinessError(ErrInvalidStatus, "", "")
		}
		filter.Status = &status
	}

	total, err := f.tagRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_TAGS_FAILED", "Failed to list tags", err)
	}
	rows, err := f.tagRepo.ByFilter(ctx, filter, "id DESC", limit, (page-1)*limit)
	if err != nil {
		return nil, NewBusinessError("LIST_TAGS_FAILED", "Failed to list tags", err)
	}

	items := make([]dto.TagDTO, 0, len(rows))
	for _, t := range rows {
		items = append(items, ToTagDTO(t))
	}
	return &dto.ListTagsResponse{Items: items, Pagination: buildPagination(total, page, limit)}, nil
}

func (f *TagFlowImpl) Summary(ctx context.Context) (*dto.TagSummaryResponse, error) {
	counts, err := f.tagRepo.CountByStatus(ctx)
	if err != nil {
		return nil, NewBusinessError("TAG_SUMMARY_FAILED", "Failed to load tag summary", err)
	}
	owners, err := f.ownerRepo.CountActive(ctx)
	if err != nil {
		return nil, NewBusinessError("TAG_SUMMARY_FAILED", "Failed to load tag summary", err)
	}

	resp := &dto.TagSummaryResponse{
		Generated:    counts[models.TagStatusGenerated],
		Assigned:     counts[models.TagStatusAssigned],
		Activated:    counts[models.TagStatusActivated],
		Archived:     counts[models.TagStatusArchived],
		ActiveOwners: owners,
	}
	resp.Total = resp.Generated + resp.Assigned + resp.Activated + resp.Archived
	return resp, nil
}

// AssignTags moves generated tags to an active affiliate; anything else is reported back as skipped
func (f *TagFlowImpl) AssignTags(ctx context.Context, req *dto.AssignTagsRequest, actor Actor, metadata *ClientMetadata) (*dto.AssignTagsResponse, error) {
	affiliate, err := f.userRepo.ByID(ctx, req.AffiliateID)
	if err != nil {
		return nil, NewBusinessError("ASSIGN_TAGS_FAILED", "Failed to assign tags", err)
	}
	if affiliate == nil {
		return nil, toBusinessError(ErrAffiliateNotFound, "", "")
	}
	if affiliate.Role != models.UserRoleAffiliate {
		return nil, toBusinessError(ErrUserNotAffiliate, "", "")
	}
	if !affiliate.IsActive {
		return nil, toBusinessError(ErrUserInactive, "", "")
	}

	codes := make([]string, 0, len(req.ShortCodes))
	requested := make(map[string]struct{}, len(req.ShortCodes))
	for _, c := range req.ShortCodes {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, dup := requested[c]; dup {
			continue
		}
		requested[c] = struct{}{}
		codes = append(codes, c)
	}

	resp := &dto.AssignTagsResponse{AffiliateID: affiliate.ID, Assigned: []string{}, Skipped: []dto.SkippedTag{}}
	err = f.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		rows, err := f.tagRepo.ListByShortCodes(txCtx, codes)
		if err != nil {
			return err
		}
		found := make(map[string]*models.Tag, len(rows))
		for _, t := range rows {
			found[t.ShortCode] = t
		}

		var ids []uint
		for _, c := range codes {
			t, ok := found[c]
			switch {
			case !ok:
				resp.Skipped = append(resp.Skipped, dto.SkippedTag{ShortCode: c, Reason: "not_found"})
			case t.Status != models.TagStatusGenerated:
				resp.Skipped = append(resp.Skipped, dto.SkippedTag{ShortCode: c, Reason: "status_" + string(t.Status)})
			default:
				ids = append(ids, t.ID)
				resp.Assigned = append(resp.Assigned, c)
			}
		}

		moved, err := f.tagRepo.AssignGenerated(txCtx, ids, affiliate.ID)
		if err != nil {
			return err
		}
		if moved != int64(len(ids)) {
			return ErrConcurrentUpdate
		}
		return nil
	})
	if err != nil {
		return nil, toBusinessError(err, "ASSIGN_TAGS_FAILED", "Failed to assign tags")
	}

	f.audit.record(ctx, &actor.ID, models.AuditActionTagsAssigned,
		fmt.Sprintf("Assigned %d tags to affiliate %d", len(resp.Assigned), affiliate.ID), true, nil, metadata,
		map[string]any{"affiliate_id": affiliate.ID, "assigned": len(resp.Assigned), "skipped": len(resp.Skipped)})
	return resp, nil
}

// ArchiveTag retires a tag. An activated tag loses its owner link; the owner keeps the tag in its history.
func (f *TagFlowImpl) ArchiveTag(ctx context.Context, shortCode string, actor Actor, metadata *ClientMetadata) (*dto.TagDTO, error) {
	var archived *models.Tag
	err := f.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		tag, err := resolveTagRef(txCtx, f.tagRepo, shortCode)
		if err != nil {
			return err
		}
		locked, err := f.tagRepo.ByIDForUpdate(txCtx, tag.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrTagNotFound
		}
		if !locked.CanTransitionTo(models.TagStatusArchived) {
			return ErrTagArchived
		}
		locked.Status = models.TagStatusArchived
		locked.OwnerAssignedTo = nil
		if err := f.tagRepo.Update(txCtx, locked); err != nil {
			return err
		}
		archived = locked
		return nil
	})
	if err != nil {
		return nil, toBusinessError(err, "ARCHIVE_TAG_FAILED", "Failed to archive tag")
	}

	f.audit.record(ctx, &actor.ID, models.AuditActionTagArchived,
		fmt.Sprintf("Tag %s archived", archived.ShortCode), true, nil, metadata,
		map[string]any{"tag_id": archived.ID})
	out := ToTagDTO(archived)
	return &out, nil
}

// StickerPNG renders the printable sticker: the QR code with the short code underneath
func (f *TagFlowImpl) StickerPNG(ctx context.Context, shortCode string) ([]byte, error) {
	tag, err := resolveTagRef(ctx, f.tagRepo, shortCode)
	if err != nil {
		return nil, toBusinessError(err, "STICKER_FAILED", "Failed to render sticker")
	}
	png, err := f.qr.StickerPNG(tag.ShortURL, strings.ToUpper(tag.ShortCode))
	if err != nil {
		return nil, NewBusinessError("STICKER_FAILED", "Failed to render sticker", err)
	}
	return png, nil
}

// PublicScan is what a finder of the vehicle sees; only non-identifying owner details leave the service
func (f *TagFlowImpl) PublicScan(ctx context.Context, shortCode string) (*dto.PublicTagResponse, error) {
	tag, err := f.tagRepo.ByShortCode(ctx, strings.ToLower(strings.TrimSpace(shortCode)))
	if err != nil {
		return nil, NewBusinessError("SCAN_FAILED", "Failed to load tag", err)
	}
	if tag == nil {
		return nil, toBusinessError(ErrTagNotFound, "", "")
	}

	resp := &dto.PublicTagResponse{
		ShortCode: tag.ShortCode,
		Status:    string(tag.Status),
		Activated: tag.IsActivated(),
	}
	if !tag.IsActivated() || tag.OwnerAssignedTo == nil {
		return resp, nil
	}

	owner, err := f.ownerRepo.ByID(ctx, *tag.OwnerAssignedTo)
	if err != nil {
		return nil, NewBusinessError("SCAN_FAILED", "Failed to load tag", err)
	}
	if owner != nil && owner.IsActive {
		resp.Owner = &dto.PublicOwnerDTO{
			FirstName:    utils.FirstName(owner.FullName),
			VehicleType:  owner.VehicleType,
			PrefSMS:      owner.PrefSMS,
			PrefWhatsApp: owner.PrefWhatsApp,
			PrefCall:     owner.PrefCall,
		}
	}
	return resp, nil
}

// VerifyTagForSale checks that an activated tag has no sale yet, before one is recorded by hand
func (f *TagFlowImpl) VerifyTagForSale(ctx context.Context, shortCode string) (*dto.VerifyTagForSaleResponse, error) {
	tag, err := resolveTagRef(ctx, f.tagRepo, shortCode)
	if err != nil {
		return nil, toBusinessError(err, "VERIFY_TAG_FAILED", "Failed to verify tag")
	}
	if tag.IsArchived() {
		return nil, toBusinessError(ErrTagArchived, "", "")
	}
	if !tag.IsActivated() {
		return nil, toBusinessError(ErrTagNotActivated, "", "")
	}

	sale, err := f.saleRepo.ByTagID(ctx, tag.ID)
	if err != nil {
		return nil, NewBusinessError("VERIFY_TAG_FAILED", "Failed to verify tag", err)
	}
	if sale != nil {
		return nil, toBusinessError(ErrSaleAlreadyExists, "", "")
	}

	return &dto.VerifyTagForSaleResponse{
		ID:          tag.ID,
		TagID:       tag.TagID.String(),
		ShortCode:   tag.ShortCode,
		Status:      string(tag.Status),
		OwnerID:     tag.OwnerAssignedTo,
		ActivatedAt: tag.ActivatedAt,
	}, nil
}
