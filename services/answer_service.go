package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ragviet-backend/internal/ai"
	"ragviet-backend/internal/config"
	"ragviet-backend/internal/logger"
	"ragviet-backend/internal/nlp"
	"ragviet-backend/internal/vectorstore"
	"ragviet-backend/models"
)

const (
	noDocumentsReply = "⚠️ Chưa có tài liệu nào được upload. Vui lòng upload file PDF trước khi đặt câu hỏi."
	noResultsReply   = "Không tìm thấy thông tin liên quan trong các tài liệu đã upload."
	noContentReply   = "Trong các tài liệu đã upload chưa có thông tin về nội dung này."
)

// Generator produces an answer for a fully built prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AnswerService runs the retrieval pipeline: conversational filter,
// dense search, page-neighbour expansion, rerank, grounded generation,
// then persists the turn into the conversation.
type AnswerService struct {
	config   *config.Config
	chat     *ChatService
	embedder ai.Embedder
	reranker *ai.Reranker
	llm      Generator
	store    *vectorstore.Store
}

func NewAnswerService(cfg *config.Config, chat *ChatService, embedder ai.Embedder, reranker *ai.Reranker, llm Generator, store *vectorstore.Store) *AnswerService {
	return &AnswerService{
		config:   cfg,
		chat:     chat,
		embedder: embedder,
		reranker: reranker,
		llm:      llm,
		store:    store,
	}
}

// Answer resolves one user question and returns the reply plus the
// conversation it was recorded in. A missing or foreign session id
// opens a new conversation rather than failing.
func (s *AnswerService) Answer(ctx context.Context, userID, sessionID, question, selectedFile string) (string, string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", "", fmt.Errorf("message is required")
	}

	session, err := s.ensureSession(ctx, userID, sessionID)
	if err != nil {
		return "", "", err
	}
	sessionID = session.ID.Hex()

	// Greetings and noise never touch the index.
	if reply, ok := nlp.Respond(question); ok {
		s.persistTurn(ctx, userID, sessionID, question, reply, selectedFile)
		return reply, sessionID, nil
	}

	if s.store.CountByUser(userID) == 0 {
		s.persistTurn(ctx, userID, sessionID, question, noDocumentsReply, selectedFile)
		return noDocumentsReply, sessionID, nil
	}

	response := s.retrieveAndGenerate(ctx, userID, question, selectedFile)
	s.persistTurn(ctx, userID, sessionID, question, response, selectedFile)
	return response, sessionID, nil
}

func (s *AnswerService) ensureSession(ctx context.Context, userID, sessionID string) (*models.ChatSession, error) {
	if sessionID != "" {
		session, err := s.chat.GetChatSession(ctx, userID, sessionID)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return session, nil
		}
	}
	return s.chat.CreateChatSession(ctx, userID)
}

func (s *AnswerService) retrieveAndGenerate(ctx context.Context, userID, question, selectedFile string) string {
	queryVec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		logger.Error("query embedding failed", "error", err)
		return fmt.Sprintf("⚠️ Lỗi khi tạo câu trả lời: %v", err)
	}

	hits, err := s.store.Search(queryVec, s.config.SearchTopK, userID, selectedFile)
	if err != nil {
		logger.Error("vector search failed", "error", err)
		return fmt.Sprintf("⚠️ Lỗi khi tạo câu trả lời: %v", err)
	}
	if len(hits) == 0 {
		response := noResultsReply
		if selectedFile != "" {
			response += fmt.Sprintf(" (đã tìm trong file: %s)", selectedFile)
		}
		return response
	}

	expanded := s.store.AdjacentChunks(hits, s.config.PageRange, userID)
	ranked := s.reranker.Rerank(ctx, question, expanded, s.config.RerankTopK)

	contextText := buildContext(ranked)
	if contextText == "" {
		return noContentReply
	}

	prompt := buildPrompt(question, contextText, selectedFile)
	answer, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		logger.Error("generation failed, returning raw context", "error", err)
		return fmt.Sprintf("⚠️ Lỗi khi tạo câu trả lời: %v\n\nThông tin từ tài liệu:\n\n%s", err, contextText)
	}
	return answer
}

// persistTurn retitles the conversation to the latest question and
// appends the turn. Persistence failures are logged, not surfaced: the
// user already has their answer.
func (s *AnswerService) persistTurn(ctx context.Context, userID, sessionID, question, response, selectedFile string) {
	if err := s.chat.TouchSession(ctx, userID, sessionID, question); err != nil {
		logger.Error("failed to update chat session", "session_id", sessionID, "error", err)
	}
	turn := &models.ChatTurn{
		UserID:       userID,
		SessionID:    sessionID,
		Message:      question,
		Response:     response,
		SelectedFile: selectedFile,
	}
	if err := s.chat.SaveChatTurn(ctx, turn); err != nil {
		logger.Error("failed to save chat turn", "session_id", sessionID, "error", err)
	}
}

// buildContext merges chunks that share a page back into one passage
// and orders passages by file then page, so the prompt reads the way
// the documents do.
func buildContext(chunks []vectorstore.SearchResult) string {
	type group struct {
		filename string
		page     int
		texts    []string
	}

	byPage := map[string]*group{}
	var keys []string
	for _, c := range chunks {
		key := fmt.Sprintf("%s_page_%d", c.Filename, c.PageNumber)
		g, ok := byPage[key]
		if !ok {
			g = &group{filename: c.Filename, page: c.PageNumber}
			byPage[key] = g
			keys = append(keys, key)
		}
		g.texts = append(g.texts, c.Text)
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := byPage[keys[i]], byPage[keys[j]]
		if a.filename != b.filename {
			return a.filename < b.filename
		}
		return a.page < b.page
	})

	var parts []string
	for _, key := range keys {
		combined := strings.Join(byPage[key].texts, " ")
		combined = strings.Join(strings.Fields(combined), " ")
		if combined != "" {
			parts = append(parts, combined)
		}
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func buildPrompt(question, contextText, selectedFile string) string {
	fileContext := ""
	if selectedFile != "" {
		fileContext = fmt.Sprintf(" (trong file: %s)", selectedFile)
	}

	return fmt.Sprintf(`Bạn là trợ lý hành chính Việt Nam cực kỳ chính xác và chuyên nghiệp.
Nhiệm vụ của bạn là trả lời câu hỏi dựa HOÀN TOÀN vào các tài liệu tham khảo được cung cấp bên dưới.

TÀI LIỆU THAM KHẢO%s:
%s

CÂU HỎI: %s

YÊU CẦU TRẢ LỜI (QUAN TRỌNG - PHẢI TUÂN THỦ):
1. **ĐỌC KỸ TOÀN BỘ TÀI LIỆU THAM KHẢO**: Phân tích tất cả các đoạn văn bản được cung cấp, đặc biệt chú ý đến các câu văn hoàn chỉnh và các đoạn liên quan. Nội dung có thể được phân chia giữa các phần khác nhau, hãy kết hợp tất cả thông tin liên quan.

2. **TRẢ LỜI ĐẦY ĐỦ - KHÔNG ĐƯỢC CẮT CỤT**:
   - Nếu trong tài liệu có câu như "được quy định như sau:" hoặc "bao gồm:" thì BẮT BUỘC phải liệt kê đầy đủ nội dung tiếp theo.
   - Nếu có danh sách, bảng, hoặc các mục liệt kê, phải trích dẫn ĐẦY ĐỦ tất cả các mục.
   - KHÔNG được dừng lại ở giữa chừng, KHÔNG được để câu trả lời bị cắt cụt.
   - Nếu thông tin dài, vẫn phải trích dẫn đầy đủ, có thể chia thành nhiều đoạn.
   - Kết hợp thông tin từ các phần khác nhau của tài liệu nếu chúng liên quan đến cùng một chủ đề.

3. **SỬ DỤNG ĐỊNH DẠNG MARKDOWN ĐỂ LÀM ĐẸP**:
   - Sử dụng **bold** cho các tiêu đề và điểm quan trọng: **Tiêu đề**
   - Sử dụng *italic* cho nhấn mạnh: *nhấn mạnh*
   - Sử dụng danh sách có dấu đầu dòng (-) hoặc đánh số (1., 2., 3.) cho các mục liệt kê
   - Sử dụng > cho trích dẫn quan trọng
   - Sử dụng `+"`code`"+` cho các số, mã, hoặc thuật ngữ kỹ thuật
   - Chia thành các đoạn văn rõ ràng với khoảng trắng giữa các đoạn

4. **CẤU TRÚC TRẢ LỜI**:
   - Bắt đầu với một câu tóm tắt ngắn gọn (nếu phù hợp)
   - Trình bày thông tin theo cấu trúc logic, có thể chia thành các phần nhỏ với tiêu đề phụ
   - Sử dụng danh sách để liệt kê các điểm quan trọng
   - Kết hợp thông tin từ nhiều phần của tài liệu một cách mạch lạc

5. **NGÔN NGỮ**: Sử dụng ngôn ngữ hành chính chuẩn mực, rõ ràng, dễ hiểu.

6. **GIỚI HẠN**:
   - KHÔNG được tự bịa thêm thông tin bên ngoài tài liệu.
   - KHÔNG được nói "dựa trên kiến thức của tôi" hoặc các cụm từ tương tự.
   - KHÔNG được thêm trích dẫn nguồn dạng "[Tên file - Trang X]" vào câu trả lời.
   - Nếu không tìm thấy thông tin chính xác trong tài liệu, hãy trả lời: "Trong các tài liệu đã upload chưa có thông tin về nội dung này."

**LƯU Ý ĐẶC BIỆT**: Đảm bảo rằng câu trả lời của bạn HOÀN CHỈNH và ĐẦY ĐỦ. Nếu trong tài liệu có câu dẫn như "như sau:", "bao gồm:", "cụ thể:", v.v., bạn PHẢI trích dẫn đầy đủ nội dung tiếp theo, không được dừng lại ở đó. Hãy kết hợp thông tin từ các phần khác nhau của tài liệu nếu chúng cùng đề cập đến chủ đề được hỏi.

Hãy trả lời một cách chi tiết, đầy đủ và có định dạng đẹp:
`, fileContext, contextText, question)
}
