package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-adaptation-service/internal/compliance"
	"catalog-adaptation-service/internal/mapping"
	"catalog-adaptation-service/internal/models"
	"catalog-adaptation-service/internal/schema"
	"catalog-adaptation-service/internal/synthesis"
	"catalog-adaptation-service/internal/templates"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestService(t *testing.T, synth Synthesizer) *AdaptationService {
	t.Helper()
	lib := schema.NewLibrary()
	registry, err := templates.NewRegistry(lib)
	require.NoError(t, err)
	return newServiceWithTemplates(lib, registry, synth)
}

func newServiceWithTemplates(lib *schema.Library, source TemplateSource, synth Synthesizer) *AdaptationService {
	if synth == nil {
		synth = synthesis.NewEngine(quietLogger(), nil)
	}
	return NewAdaptationService(
		lib,
		source,
		mapping.NewEngine(mapping.DefaultConfig()),
		synth,
		compliance.NewValidator(),
		DefaultAdaptationConfig(),
		quietLogger(),
	)
}

func tshirtRecord() models.ProductRecord {
	return models.ProductRecord{
		"sku":      "TSH001",
		"title":    "Premium Cotton T-Shirt",
		"brand":    "FashionCo",
		"category": "T-Shirts",
		"material": "Cotton",
		"color":    "Navy Blue",
		"price":    29.99,
		"images":   []string{"https://cdn.example.com/tsh001.jpg"},
	}
}

// flakySynthesizer fails or panics for selected SKUs
type flakySynthesizer struct {
	*synthesis.Engine
	failSKU  string
	panicSKU string
}

func (f *flakySynthesizer) Synthesize(ctx context.Context, record models.ProductRecord, missing []models.AttributeDefinition, marketplace models.MarketplaceKey) (map[string]interface{}, error) {
	switch record.SKU() {
	case f.failSKU:
		return nil, errors.New("generator exploded")
	case f.panicSKU:
		panic("unexpected value type")
	}
	return f.Engine.Synthesize(ctx, record, missing, marketplace)
}

// extraAttributeTemplates serves namshi with one more required attribute
type extraAttributeTemplates struct {
	registry *templates.Registry
	extra    []models.AttributeDefinition
}

func (e *extraAttributeTemplates) Get(key models.MarketplaceKey) (*models.MarketplaceTemplate, error) {
	tmpl, err := e.registry.Get(key)
	if err != nil {
		return nil, err
	}
	tmpl.Attributes = append(tmpl.Attributes, e.extra...)
	return tmpl, nil
}

func TestAdapt_TShirtOnNamshi(t *testing.T) {
	svc := newTestService(t, nil)

	result, err := svc.Adapt(context.Background(), tshirtRecord(), models.MarketplaceNamshi)
	require.NoError(t, err)
	require.True(t, result.Succeeded())

	assert.Equal(t, "TSH001", result.SKU)
	assert.Equal(t, models.MarketplaceNamshi, result.Marketplace)
	assert.Len(t, result.Mappings, 8)
	assert.Empty(t, result.Removed)
	assert.Empty(t, result.Renamed)

	assert.Equal(t, "Unisex", result.Adapted["gender"])
	assert.Equal(t, []string{"age_group", "availability", "condition", "gender"}, result.InferredFields)
	assert.Equal(t, []string{"description"}, result.GeneratedFields)
	assert.Equal(t, "Clothing > Tops > T-Shirts", result.Adapted["category"])
	assert.Equal(t, "category remapped via table", result.Transformations["category"])
	assert.Equal(t, "title copied", result.Transformations["title"])
	assert.Equal(t, "gender inferred from product text", result.Transformations["gender"])
	assert.Equal(t, "description generated", result.Transformations["description"])
	assert.Equal(t, "FashionCo Premium Cotton T-Shirt - Navy Blue", result.Adapted["title"])
	assert.Contains(t, result.Adapted.String("description"), "FashionCo")

	var newNames []string
	for _, a := range result.NewAttributes {
		newNames = append(newNames, a.Name)
	}
	assert.Equal(t, []string{"gender", "size", "season", "description", "bullet_point1", "bullet_point2"}, newNames)

	// 8 exact mappings, 6 unmapped target attributes
	assert.Equal(t, 70, result.Confidence)
	assert.Equal(t, []string{"Missing required field: size"}, result.Issues)
	for _, issue := range result.Issues {
		assert.NotContains(t, issue, "gender")
	}

	assert.Equal(t, "T-Shirts", result.Original["category"], "original record is left untouched")
}

func TestAdapt_GenderKeyword(t *testing.T) {
	svc := newTestService(t, nil)
	record := tshirtRecord()
	record["title"] = "Mens Premium Cotton T-Shirt"

	result, err := svc.Adapt(context.Background(), record, models.MarketplaceNamshi)
	require.NoError(t, err)
	assert.Equal(t, "Men", result.Adapted["gender"])
}

func TestAdapt_ValueAndConditionalRules(t *testing.T) {
	svc := newTestService(t, nil)
	record := models.ProductRecord{
		"sku":      "SNK-42",
		"title":    "Runner Low Top Sneaker",
		"brand":    "Stride",
		"category": "Sneakers",
		"gender":   "male",
		"color":    "White",
		"size":     "42",
		"price":    "AED 349.00",
		"images":   "https://cdn.example.com/snk42-a.jpg|https://cdn.example.com/snk42-b.png",
	}

	result, err := svc.Adapt(context.Background(), record, models.MarketplaceNamshi)
	require.NoError(t, err)

	assert.Equal(t, "Shoes > Sneakers", result.Adapted["category"])
	assert.Equal(t, "Men", result.Adapted["gender"])
	assert.Equal(t, "gender remapped via table", result.Transformations["gender"])
	assert.Equal(t, 349.0, result.Adapted["price"])
	assert.Equal(t, []string{"https://cdn.example.com/snk42-a.jpg", "https://cdn.example.com/snk42-b.png"}, result.Adapted["images"])

	// Shoes make material required
	var newNames []string
	for _, a := range result.NewAttributes {
		newNames = append(newNames, a.Name)
	}
	assert.Contains(t, newNames, "material")
	assert.Contains(t, result.Issues, "Missing required field: material")
}

func TestAdapt_RemovedAttributesLowerConfidence(t *testing.T) {
	svc := newTestService(t, nil)

	base, err := svc.Adapt(context.Background(), tshirtRecord(), models.MarketplaceNamshi)
	require.NoError(t, err)

	record := tshirtRecord()
	record["zzq_flag"] = "yes"
	record["qqx"] = "1"
	withExtras, err := svc.Adapt(context.Background(), record, models.MarketplaceNamshi)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"qqx", "zzq_flag"}, withExtras.Removed)
	assert.Equal(t, base.Confidence-6, withExtras.Confidence)
	assert.NotContains(t, withExtras.Adapted, "qqx")
}

func TestAdapt_ConfidenceMonotonicInNewAttributes(t *testing.T) {
	lib := schema.NewLibrary()
	registry, err := templates.NewRegistry(lib)
	require.NoError(t, err)

	previous := 101
	for extra := 0; extra <= 4; extra++ {
		source := &extraAttributeTemplates{registry: registry}
		for i := 0; i < extra; i++ {
			source.extra = append(source.extra, models.AttributeDefinition{
				Name:     fmt.Sprintf("warranty_code_%d", i),
				Type:     models.AttributeTypeString,
				Required: true,
			})
		}
		svc := newServiceWithTemplates(lib, source, nil)

		result, err := svc.Adapt(context.Background(), tshirtRecord(), models.MarketplaceNamshi)
		require.NoError(t, err)
		assert.LessOrEqual(t, result.Confidence, previous, "extra=%d", extra)
		if extra > 0 {
			assert.Less(t, result.Confidence, previous, "extra=%d", extra)
		}
		previous = result.Confidence
	}
}

func TestAdapt_Errors(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Adapt(context.Background(), nil, models.MarketplaceNamshi)
	assert.ErrorIs(t, err, ErrNilRecord)

	_, err = svc.Adapt(context.Background(), tshirtRecord(), models.MarketplaceKey("ebay"))
	assert.ErrorIs(t, err, ErrUnknownMarketplace)
}

func TestAdapt_AmazonRenamesAttributes(t *testing.T) {
	svc := newTestService(t, nil)

	result, err := svc.Adapt(context.Background(), tshirtRecord(), models.MarketplaceAmazon)
	require.NoError(t, err)

	assert.Equal(t, "item_name", result.Renamed["title"])
	assert.Equal(t, "brand_name", result.Renamed["brand"])
	assert.Equal(t, "FashionCo", result.Adapted["brand_name"])
	assert.NotContains(t, result.Adapted, "brand")
	assert.Equal(t, "title → item_name (renamed)", result.Transformations["item_name"])
}

func TestAdapt_AncillaryOnEveryMarketplace(t *testing.T) {
	svc := newTestService(t, nil)

	// amazon declares condition but not gender, age_group or availability
	result, err := svc.Adapt(context.Background(), tshirtRecord(), models.MarketplaceAmazon)
	require.NoError(t, err)

	assert.Equal(t, "Unisex", result.Adapted["gender"])
	assert.Equal(t, synthesis.DefaultCondition, result.Adapted["condition"])
	assert.Equal(t, synthesis.DefaultAvailability, result.Adapted["availability"])
	assert.Contains(t, result.Adapted, "age_group")
	assert.Equal(t, []string{"age_group", "availability", "condition", "gender"}, result.InferredFields)
	for _, issue := range result.Issues {
		assert.NotContains(t, issue, "gender")
	}
}

func TestAdapt_NewAttributesCoverOptionalTargets(t *testing.T) {
	svc := newTestService(t, nil)
	record := tshirtRecord()
	record["season"] = "summer"

	result, err := svc.Adapt(context.Background(), record, models.MarketplaceNamshi)
	require.NoError(t, err)

	var newNames []string
	for _, a := range result.NewAttributes {
		newNames = append(newNames, a.Name)
	}
	assert.NotContains(t, newNames, "season")
	assert.Contains(t, newNames, "bullet_point1")
	assert.Equal(t, "Spring/Summer", result.Adapted["season"])
	// 9 exact mappings, 5 unmapped target attributes
	assert.Equal(t, 75, result.Confidence)
}

func TestDescribeTransformation(t *testing.T) {
	tests := []struct {
		source, target string
		kind           models.TransformationKind
		expected       string
	}{
		{"title", "title", models.TransformationDirect, "title copied"},
		{"title", "item_name", models.TransformationDirect, "title → item_name (renamed)"},
		{"category", "category", models.TransformationMapped, "category remapped via table"},
		{"category", "product_type", models.TransformationMapped, "category → product_type (remapped via table)"},
		{"price", "standard_price", models.TransformationCalculated, "standard_price calculated from price"},
		{"", "description", models.TransformationGenerated, "description generated"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, describeTransformation(tt.source, tt.target, tt.kind))
		})
	}
}

func TestLookupFold(t *testing.T) {
	table := map[string]string{
		"T-Shirts": "Clothing > Tops > T-Shirts",
		"t-shirts": "Clothing > Tees",
		"Dresses":  "Clothing > Dresses",
	}

	v, ok := lookupFold(table, "t-shirts")
	require.True(t, ok)
	assert.Equal(t, "Clothing > Tees", v, "exact key wins")

	for i := 0; i < 20; i++ {
		v, ok = lookupFold(table, "T-SHIRTS")
		require.True(t, ok)
		assert.Equal(t, "Clothing > Tops > T-Shirts", v, "first sorted key wins")
	}

	v, ok = lookupFold(table, "DRESSES")
	require.True(t, ok)
	assert.Equal(t, "Clothing > Dresses", v)

	_, ok = lookupFold(table, "Bags")
	assert.False(t, ok)
	_, ok = lookupFold(nil, "Bags")
	assert.False(t, ok)
}

func TestConfidence(t *testing.T) {
	svc := newTestService(t, nil)

	mappings := []models.AttributeMapping{{Confidence: 100}, {Confidence: 70}, {Confidence: 40}}
	tests := []struct {
		name     string
		result   models.AdaptationResult
		expected int
	}{
		{"buckets only", models.AdaptationResult{Mappings: mappings}, 57},
		{"with new attribute", models.AdaptationResult{
			Mappings:      mappings,
			NewAttributes: []models.AttributeDefinition{{Name: "size"}},
		}, 52},
		{"with new and removed", models.AdaptationResult{
			Mappings:      mappings,
			NewAttributes: []models.AttributeDefinition{{Name: "size"}},
			Removed:       []string{"a", "b"},
		}, 46},
		{"floored at zero", models.AdaptationResult{
			Removed: []string{"a", "b", "c"},
		}, 0},
		{"boundary 80 is medium", models.AdaptationResult{
			Mappings: []models.AttributeMapping{{Confidence: 80}},
		}, 70},
		{"below 60 counts nothing", models.AdaptationResult{
			Mappings: []models.AttributeMapping{{Confidence: 59}},
		}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, svc.confidence(tt.result))
		})
	}
}

func TestResolveMappings(t *testing.T) {
	applied := resolveMappings([]models.AttributeMapping{
		{SourceAttribute: "name", TargetAttribute: "title", Confidence: 95},
		{SourceAttribute: "title", TargetAttribute: "title", Confidence: 100},
		{SourceAttribute: "colour", TargetAttribute: "color", Confidence: 95},
		{SourceAttribute: "color_name", TargetAttribute: "color", Confidence: 95},
	})

	assert.Equal(t, "title", applied["title"].SourceAttribute)
	assert.Equal(t, "colour", applied["color"].SourceAttribute, "ties keep the earlier source")
}

func TestTransformValue(t *testing.T) {
	rules := models.TransformationRules{
		CategoryMappings: map[string]string{"Sneakers": "Shoes > Sneakers"},
		ValueMappings:    map[string]map[string]string{"gender": {"male": "Men"}},
	}
	gender := models.AttributeDefinition{
		Name:       "gender",
		Type:       models.AttributeTypeString,
		Validation: &models.Validation{Enum: []string{"Men", "Women", "Unisex"}},
	}

	tests := []struct {
		name     string
		value    interface{}
		attr     models.AttributeDefinition
		expected interface{}
		kind     models.TransformationKind
	}{
		{"category case-insensitive", "sneakers", models.AttributeDefinition{Name: "category", Type: models.AttributeTypeString},
			"Shoes > Sneakers", models.TransformationMapped},
		{"value mapping", "MALE", gender, "Men", models.TransformationMapped},
		{"enum casing", "women", gender, "Women", models.TransformationDirect},
		{"price string", "$1,234.50", models.AttributeDefinition{Name: "price", Type: models.AttributeTypeNumber},
			1234.5, models.TransformationDirect},
		{"number to string", 42.0, models.AttributeDefinition{Name: "size", Type: models.AttributeTypeString},
			"42", models.TransformationDirect},
		{"string to array", "red", models.AttributeDefinition{Name: "search_terms", Type: models.AttributeTypeArray},
			[]string{"red"}, models.TransformationDirect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, kind := transformValue(tt.value, tt.attr, rules, models.TransformationDirect)
			assert.Equal(t, tt.expected, value)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func batchRecords(n int) []models.ProductRecord {
	records := make([]models.ProductRecord, n)
	for i := range records {
		records[i] = models.ProductRecord{
			"sku":      fmt.Sprintf("R%d", i+1),
			"title":    "Classic Linen Shirt",
			"brand":    "Acme",
			"category": "Shirts",
			"color":    "White",
			"price":    19.5,
			"images":   []string{fmt.Sprintf("https://cdn.example.com/r%d.jpg", i+1)},
		}
	}
	return records
}

func TestProcessBatch_ItemFailureDoesNotStopBatch(t *testing.T) {
	for _, mode := range []string{"error", "panic"} {
		t.Run(mode, func(t *testing.T) {
			synth := &flakySynthesizer{Engine: synthesis.NewEngine(quietLogger(), nil)}
			if mode == "error" {
				synth.failSKU = "R3"
			} else {
				synth.panicSKU = "R3"
			}
			svc := newTestService(t, synth)

			var updates []models.BatchProgress
			results, err := svc.ProcessBatch(context.Background(), batchRecords(5), models.MarketplaceNamshi, func(p models.BatchProgress) {
				updates = append(updates, p)
			})
			require.NoError(t, err)
			require.Len(t, results, 5)

			failed := results[2]
			assert.Equal(t, "R3", failed.SKU)
			assert.Equal(t, 0, failed.Confidence)
			assert.False(t, failed.Succeeded())
			require.Len(t, failed.Issues, 1)
			assert.Contains(t, failed.Issues[0], "Processing error")

			for _, i := range []int{0, 1, 3, 4} {
				assert.True(t, results[i].Succeeded(), "item %d", i)
				assert.Greater(t, results[i].Confidence, 0, "item %d", i)
			}

			require.Len(t, updates, 5)
			last := updates[4]
			assert.Equal(t, 5, last.Processed)
			assert.Equal(t, 5, last.Total)
			assert.Equal(t, 4, last.Successful)
			assert.Equal(t, 1, last.Failed)
			assert.Equal(t, 100.0, last.Percentage)
			assert.Zero(t, last.ETA)
			for i, u := range updates {
				assert.Equal(t, i+1, u.Processed)
			}
		})
	}
}

func TestProcessBatch_CancelBetweenItems(t *testing.T) {
	svc := newTestService(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results, err := svc.ProcessBatch(ctx, batchRecords(5), models.MarketplaceNamshi, func(p models.BatchProgress) {
		if p.Processed == 2 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 2)
}

func TestProcessBatch_StructuralErrors(t *testing.T) {
	svc := newTestService(t, nil)
	called := false
	onProgress := func(models.BatchProgress) { called = true }

	_, err := svc.ProcessBatch(context.Background(), nil, models.MarketplaceNamshi, onProgress)
	assert.ErrorIs(t, err, ErrEmptyBatch)

	_, err = svc.ProcessBatch(context.Background(), batchRecords(2), models.MarketplaceKey("ebay"), onProgress)
	assert.ErrorIs(t, err, ErrUnknownMarketplace)

	assert.False(t, called)
}

func TestProcessBatch_NilRecordBecomesFailedResult(t *testing.T) {
	svc := newTestService(t, nil)
	records := batchRecords(2)
	records = append(records, nil)

	results, err := svc.ProcessBatch(context.Background(), records, models.MarketplaceNamshi, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.False(t, results[2].Succeeded())
	assert.Equal(t, 0, results[2].Confidence)
}
