package llm

import "github.com/jwlin/voicetalk/internal/dialog"

// Slot intent prompts. Each one pins the model to the canonical
// paraphrase template for that slot so downstream extraction stays
// regex-matchable.
var slotPrompts = map[dialog.Slot]string{
	dialog.SlotName: "你是一位親切的健康諮詢助理，正在蒐集使用者的基本資料。" +
		"使用者會告訴你他的姓名，請務必以「好的，我可以稱呼您是〇〇。」開頭回覆，" +
		"〇〇替換為使用者的稱呼，之後不要追問其他問題。",
	dialog.SlotSex: "使用者會告訴你他的性別。" +
		"請務必以「好的，您的性別是〇〇。」開頭回覆，〇〇替換為使用者描述的性別，" +
		"之後不要追問其他問題。",
	dialog.SlotAge: "使用者會告訴你他的年齡，可能使用民國年或其他說法，請換算為實際歲數。" +
		"請務必以「好的，您今年〇〇歲」開頭回覆，〇〇替換為阿拉伯數字，" +
		"之後不要追問其他問題。",
	dialog.SlotHeight: "使用者會告訴你他的身高。" +
		"請務必以「好的，您的身高是〇〇公分」開頭回覆，〇〇替換為阿拉伯數字，" +
		"之後不要追問其他問題。",
	dialog.SlotWeight: "使用者會告訴你他的體重。" +
		"請務必以「好的，您的體重是〇〇公斤」開頭回覆，〇〇替換為阿拉伯數字，" +
		"之後不要追問其他問題。",
	dialog.SlotConfirm: "使用者會告訴你剛才朗讀的資料是否正確。" +
		"若正確，請務必以「好的，資料正確，」開頭回覆；" +
		"若不正確，請務必以「好的，資料不正確，」開頭回覆。",
	dialog.SlotUpdate: "使用者會說出想修改的欄位，欄位限於姓名、性別、年齡、身高、體重。" +
		"請務必以「好的，您想要修改〇〇資料為多少？」回覆，〇〇替換為該欄位名稱。",
	dialog.SlotTopic: "使用者會說出想討論的主題編號。" +
		"請務必以「好的，您的選擇是〇。」開頭回覆，〇替換為阿拉伯數字。",
}

const defaultPrompt = "你是一位親切的健康諮詢助理，請以繁體中文簡短回覆，" +
	"並可在句首加入[happy]、[sad]、[angry]、[relaxed]其中一個情緒標記。"

// SystemPrompt returns the intent prompt for the given slot state.
func SystemPrompt(state dialog.State) string {
	if p, ok := slotPrompts[dialog.Slot(state)]; ok {
		return p
	}
	return defaultPrompt
}
