package search

import (
	"bytes"
	"context"
	"encoding/json"

	"example.com/coverlane/services/claims/config"
	"example.com/coverlane/services/claims/internal/models"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ElasticClient provides integration with Elasticsearch
type ElasticClient struct {
	client *elasticsearch.Client
	config config.ElasticConfig
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	esConfig := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client: client,
		config: cfg,
	}, nil
}

// IndexClaim indexes a claim for the admin panel search. Document contents
// are never indexed, only the claim metadata.
func (c *ElasticClient) IndexClaim(ctx context.Context, claim *models.Claim) error {
	log.Info().Str("claim_id", claim.ClaimID).Msg("indexing claim")

	claimDoc := map[string]interface{}{
		"claim_id":        claim.ClaimID,
		"wallet_address":  claim.WalletAddress,
		"policy_type":     claim.PolicyType,
		"policy_id":       claim.PolicyID,
		"claim_amount":    claim.ClaimAmount,
		"description":     claim.Description,
		"incident_date":   claim.IncidentDate,
		"documents_count": claim.DocumentsCount,
		"status":          claim.Status,
		"created_at":      claim.CreatedAt,
	}
	if claim.PayoutAmount != nil {
		claimDoc["payout_amount"] = *claim.PayoutAmount
	}
	if claim.ReviewedAt != nil {
		claimDoc["reviewed_at"] = *claim.ReviewedAt
	}

	// Marshall the document to JSON
	docJSON, err := json.Marshal(claimDoc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal claim document")
	}

	// Prepare the index request
	indexName := config.FormatIndex(c.config, c.config.Index)
	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: claim.ClaimID,
		Body:       bytes.NewReader(docJSON),
		Refresh:    "true",
	}

	// Execute the request
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	// Check for errors in the response
	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return errors.Errorf("Elasticsearch index error: %v", e)
	}

	log.Info().Str("claim_id", claim.ClaimID).Msg("claim indexed successfully")
	return nil
}

// SearchClaims searches indexed claims with the given criteria
func (c *ElasticClient) SearchClaims(ctx context.Context, query map[string]interface{}) ([]map[string]interface{}, error) {
	// Convert query to JSON
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	// Prepare the search request
	indexName := config.FormatIndex(c.config, c.config.Index)
	req := esapi.SearchRequest{
		Index: []string{indexName},
		Body:  bytes.NewReader(queryJSON),
	}

	// Execute the request
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	// Check for errors in the response
	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return nil, errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return nil, errors.Errorf("Elasticsearch search error: %v", e)
	}

	// Parse the response
	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	// Extract the hits
	hits, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected search result format")
	}

	hitsArray, ok := hits["hits"].([]interface{})
	if !ok {
		return nil, errors.New("unexpected hits format")
	}

	// Extract the documents
	var docs []map[string]interface{}
	for _, hit := range hitsArray {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}

		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}

		docs = append(docs, source)
	}

	return docs, nil
}
