// internal/models/scene.go
package models

// ActorRole 演员在场景中的定位
const (
	RoleProtagonist = "protagonist"
	RoleAntagonist  = "antagonist"
	RoleSupporting  = "supporting"
)

// Actor 场景中的参与者，初始化后在会话内不可变
type Actor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Language string `json:"language"`
	VoiceID  string `json:"voiceId"`
	Style    string `json:"style"`
}

// Line 一条生成的台词或动作，追加后不可变
type Line struct {
	ID        string `json:"id"`
	ActorID   string `json:"actorId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // 创建时刻的毫秒时间戳
	BeatIndex int    `json:"beatIndex"`
	AudioURL  string `json:"audioUrl"` // 音频失败时为空字符串
}

// SceneState 场景聚合状态
// lines 只增不减；currentBeat 每轮恰好加一
type SceneState struct {
	Title       string  `json:"title"`
	Genre       string  `json:"genre"`
	Setting     string  `json:"setting"`
	Actors      []Actor `json:"actors"`
	Lines       []Line  `json:"lines"`
	CurrentBeat int     `json:"currentBeat"`
}

// SceneMetadata 会话元数据快照，供规划上下文使用
type SceneMetadata struct {
	Title       string `json:"title"`
	Genre       string `json:"genre"`
	Setting     string `json:"setting"`
	CurrentBeat int    `json:"currentBeat"`
}

// LineDraft 对话生成器返回的未完成行（尚未分配ID/时间戳/音频）
type LineDraft struct {
	ActorID string `json:"actorId"`
	Text    string `json:"text"`
}

// DefaultSceneMetadata 未知会话的固定默认元数据
// 调用方依赖这组默认值做分支判断，不可随意改动
func DefaultSceneMetadata() SceneMetadata {
	return SceneMetadata{
		Title:       "Untitled",
		Genre:       "Drama",
		Setting:     "Unknown",
		CurrentBeat: 0,
	}
}

// DefaultScene 创建带两个种子演员的默认场景
func DefaultScene() *SceneState {
	return &SceneState{
		Title:   "The Golden Hackathon",
		Genre:   "Cyberpunk Mystery",
		Setting: "A dimly lit server room in New Delhi.",
		Actors: []Actor{
			{
				ID:       "hero",
				Name:     "Arjun",
				Role:     RoleProtagonist,
				Language: "en-US",
				VoiceID:  "v1",
				Style:    "Nervous",
			},
			{
				ID:       "ai",
				Name:     "Nexus",
				Role:     RoleSupporting,
				Language: "en-US",
				VoiceID:  "v2",
				Style:    "Robotic",
			},
		},
		Lines:       []Line{},
		CurrentBeat: 0,
	}
}

// Metadata 提取场景的元数据快照
func (s *SceneState) Metadata() SceneMetadata {
	return SceneMetadata{
		Title:       s.Title,
		Genre:       s.Genre,
		Setting:     s.Setting,
		CurrentBeat: s.CurrentBeat,
	}
}

// ActorByID 按ID查找演员，找不到时返回nil
func (s *SceneState) ActorByID(id string) *Actor {
	for i := range s.Actors {
		if s.Actors[i].ID == id {
			return &s.Actors[i]
		}
	}
	return nil
}
