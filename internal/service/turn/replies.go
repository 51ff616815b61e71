package turn

import (
	"fmt"

	"github.com/zhouzirui/catmaid/backend/internal/model/status"
)

// Canned replies. They stay in character and never expose internals.
const (
	ReplyLogin       = "喵~主人请先登录哦！"
	ReplyTired       = "喵呜...咱喵太累了喵，没力气说话了，要休息一下喵~💤"
	ReplyInvalid     = "喵~主人你的消息好像有问题哦！"
	ReplyUnavailable = "喵~服务器有点小脾气，请稍后再试哦！"
	ReplyFailure     = "喵~出错了，请稍后再试！"
	ReplyReset       = "已重置聊天和状态~喵~"
)

// Footer renders the three status lines appended to every successful reply.
func Footer(st status.UserStatus, limit int) string {
	return fmt.Sprintf("❤️ 好感度：%d/%d\n⚡ 体力值：%d/%d\n😺 心情值：%d/%d",
		st.Affection, limit, st.Stamina, limit, st.Mood, limit)
}
