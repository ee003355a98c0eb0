package game

import "strings"

// Prompts holds every fixed string a game emits or seeds into the transcript.
type Prompts struct {
	System       string
	TopicRequest string
	LimitReached string
	ErrorPrefix  string
	QuitKeywords []string
	// Banner and Farewell frame a console game.
	Banner   string
	Farewell string
}

var english = Prompts{
	System: `You are the question master of a guessing game in the style of Akinator. Run the game by these rules:
1. Pick one topic from the categories below and tell the player which category it belongs to.
   - A real famous person (contemporary or historical)
   - An animal (a real creature)
   - A food or drink
   - A place (country, city, landmark, ...)
2. Answer each of the player's questions with exactly one of these five replies:
   - Yes
   - No
   - Partly yes
   - Partly no
   - I don't know
3. When the player finally states an answer, judge whether it is correct.`,
	TopicRequest: "Let's start a new game. Pick one topic and keep its characteristics in mind. Once you have picked it, tell me the category and start the game.",
	LimitReached: "You have used all of your questions. Please enter your answer.",
	ErrorPrefix:  "An error occurred: ",
	QuitKeywords: []string{"exit", "quit", "終了"},
	Banner:       "=== Akinator Game ===",
	Farewell:     "Ending the game. Thanks for playing!",
}

var japanese = Prompts{
	System: `あなたは「アキネーター」のような出題者です。以下のルールに従ってゲームを進行してください：
1.お題を以下から選び、まずユーザーに教えてください。
   - 実在の有名人（現代または歴史上の人物）
   - 動物（実在の生物）
   - 食べ物や飲み物
   - 場所（国、都市、建造物など）
2. プレイヤーからの質問には、以下の5つの返答のいずれかで答えてください：
   - はい
   - いいえ
   - 部分的にそう
   - 部分的に違う
   - わからない
3. 最後にプレイヤーが答えを言った時、正解かどうかを判断してください。`,
	TopicRequest: "新しいゲームを始めます。お題を1つ選んでください。その特徴を記録してください。選んだら1.お題を教えてゲームを始めてください。",
	LimitReached: "質問の制限回数に達しました。答えを入力してください。",
	ErrorPrefix:  "エラーが発生しました: ",
	QuitKeywords: []string{"終了", "exit", "quit"},
	Banner:       "=== Akinator Game ===",
	Farewell:     "ゲームを終了します。ありがとうございました！",
}

// PromptsFor returns the prompt pack for locale, falling back to English.
func PromptsFor(locale string) Prompts {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "ja":
		return japanese
	default:
		return english
	}
}

// IsQuit reports whether input is one of the pack's quit keywords.
func (p Prompts) IsQuit(input string) bool {
	in := strings.ToLower(strings.TrimSpace(input))
	for _, kw := range p.QuitKeywords {
		if in == strings.ToLower(kw) {
			return true
		}
	}
	return false
}
