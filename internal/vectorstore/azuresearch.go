package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/fyrsmithlabs/reis-engine/internal/chunking"
)

// azureAPIVersion is the REST API version used for every request.
const azureAPIVersion = "2023-11-01"

// AzureAISearch is a vector store backed by Azure AI Search's REST API.
// The examples pack carries no Go SDK for this service, so requests are
// issued directly with net/http against the documented index/docs
// endpoints (see DESIGN.md for the justification).
//
// SimilaritySearch sends the query text as a full-text "search" request; it
// does not send a vector query, so results come in Azure's text-relevance
// order, not by embedding similarity. The embedder is used only when adding
// chunks. A doc-id filter is applied client-side to the top k results.
type AzureAISearch struct {
	endpoint   string
	apiKey     string
	indexName  string
	embedder   Embedder
	httpClient *http.Client
}

// NewAzureAISearch returns a store targeting endpoint/indexes/indexName.
func NewAzureAISearch(endpoint, apiKey, indexName string, embedder Embedder) *AzureAISearch {
	return &AzureAISearch{
		endpoint:   endpoint,
		apiKey:     apiKey,
		indexName:  indexName,
		embedder:   embedder,
		httpClient: &http.Client{},
	}
}

func (a *AzureAISearch) resolveIndex(indexName string) string {
	if indexName != "" {
		return indexName
	}
	return a.indexName
}

func (a *AzureAISearch) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("vectorstore: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("vectorstore: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vectorstore: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vectorstore: azure search %s returned %d: %s", path, resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("vectorstore: decode response: %w", err)
		}
	}
	return nil
}

type azureDoc struct {
	ID       string         `json:"id"`
	DocID    string         `json:"doc_id"`
	Bucket   string         `json:"bucket"`
	Content  string         `json:"content"`
	Metadata string         `json:"metadata"`
	Vector   []float32      `json:"content_vector"`
	Extra    map[string]any `json:"-"`
}

type azureIndexAction struct {
	ActionType string `json:"@search.action"`
	azureDoc
}

func (a *AzureAISearch) AddDocuments(ctx context.Context, indexName string, chunks []chunking.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	actions := make([]azureIndexAction, 0, len(chunks))
	for i, c := range chunks {
		vec, err := a.embedder.Embed(ctx, c.Content)
		if err != nil {
			return fmt.Errorf("%w: embed chunk %d: %v", ErrBatchFailed, i, err)
		}
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("%w: marshal metadata: %v", ErrBatchFailed, err)
		}
		bucket, _ := c.Metadata[chunking.MetaBucket].(string)
		id := stringMetaOr(c.Metadata, chunking.MetaID, fmt.Sprintf("%s-%d", c.DocID(), i))

		actions = append(actions, azureIndexAction{
			ActionType: "mergeOrUpload",
			azureDoc: azureDoc{
				ID:       id,
				DocID:    c.DocID(),
				Bucket:   bucket,
				Content:  c.Content,
				Metadata: string(meta),
				Vector:   vec,
			},
		})
	}

	path := fmt.Sprintf("/indexes/%s/docs/index?api-version=%s", a.resolveIndex(indexName), azureAPIVersion)
	if err := a.do(ctx, http.MethodPost, path, map[string]any{"value": actions}, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrBatchFailed, err)
	}
	return nil
}

func (a *AzureAISearch) Delete(ctx context.Context, indexName, docID string) error {
	found, err := a.searchRaw(ctx, indexName, "*", 1000, Filter{DocIDs: map[string]struct{}{docID: {}}})
	if err != nil {
		return fmt.Errorf("vectorstore: lookup for delete: %w", err)
	}
	if len(found) == 0 {
		return nil
	}

	actions := make([]azureIndexAction, 0, len(found))
	for _, doc := range found {
		actions = append(actions, azureIndexAction{ActionType: "delete", azureDoc: azureDoc{ID: doc.ID}})
	}

	path := fmt.Sprintf("/indexes/%s/docs/index?api-version=%s", a.resolveIndex(indexName), azureAPIVersion)
	return a.do(ctx, http.MethodPost, path, map[string]any{"value": actions}, nil)
}

type azureSearchResponse struct {
	Value []azureDoc `json:"value"`
}

func (a *AzureAISearch) searchRaw(ctx context.Context, indexName, query string, k int, filter Filter) ([]azureDoc, error) {
	filterExpr := ""
	if filter.Bucket != "" {
		filterExpr = fmt.Sprintf("bucket eq '%s'", url.QueryEscape(filter.Bucket))
	}

	reqBody := map[string]any{
		"search": query,
		"top":    k,
	}
	if filterExpr != "" {
		reqBody["filter"] = filterExpr
	}

	var resp azureSearchResponse
	path := fmt.Sprintf("/indexes/%s/docs/search?api-version=%s", a.resolveIndex(indexName), azureAPIVersion)
	if err := a.do(ctx, http.MethodPost, path, reqBody, &resp); err != nil {
		return nil, err
	}

	if len(filter.DocIDs) == 0 {
		return resp.Value, nil
	}

	filtered := make([]azureDoc, 0, len(resp.Value))
	for _, doc := range resp.Value {
		if _, ok := filter.DocIDs[doc.DocID]; ok {
			filtered = append(filtered, doc)
		}
	}
	return filtered, nil
}

func (a *AzureAISearch) SimilaritySearch(ctx context.Context, indexName, query string, k int, filter Filter) ([]chunking.Chunk, error) {
	docs, err := a.searchRaw(ctx, indexName, query, k, filter)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: similarity search: %w", err)
	}
	return azureDocsToChunks(docs)
}

func (a *AzureAISearch) GetDocuments(ctx context.Context, indexName string, ids []string) ([]chunking.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	docs, err := a.searchRaw(ctx, indexName, "*", 1000, Filter{})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: get documents: %w", err)
	}

	var matched []azureDoc
	for _, doc := range docs {
		if _, ok := idSet[doc.ID]; ok {
			matched = append(matched, doc)
		}
	}
	return azureDocsToChunks(matched)
}

func azureDocsToChunks(docs []azureDoc) ([]chunking.Chunk, error) {
	out := make([]chunking.Chunk, 0, len(docs))
	for _, doc := range docs {
		var meta map[string]any
		if doc.Metadata != "" {
			if err := json.Unmarshal([]byte(doc.Metadata), &meta); err != nil {
				return nil, fmt.Errorf("vectorstore: unmarshal metadata: %w", err)
			}
		} else {
			meta = map[string]any{}
		}
		meta[chunking.MetaID] = doc.ID
		meta[chunking.MetaDocID] = doc.DocID
		out = append(out, chunking.New(doc.Content, meta))
	}
	return out, nil
}
