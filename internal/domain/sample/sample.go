// Package sample produces demo transcripts so the whole flow can be tried
// without a recognizer.
package sample

import (
	"math"
	"strings"
	"time"

	"github.com/forPelevin/vidbrief/internal/types"
)

// LineDuration is the length of every generated utterance.
const LineDuration = 5 * time.Second

type Kind string

const (
	KindMeeting   Kind = "meeting"
	KindTutorial  Kind = "tutorial"
	KindInterview Kind = "interview"
	KindVlog      Kind = "vlog"
	KindGeneric   Kind = "generic"
)

var kindKeywords = []struct {
	kind  Kind
	words []string
}{
	{KindMeeting, []string{"会议", "meeting"}},
	{KindTutorial, []string{"教", "课", "tutorial"}},
	{KindInterview, []string{"访谈", "interview"}},
	{KindVlog, []string{"vlog", "日常", "旅"}},
}

var lines = map[Kind][]string{
	KindMeeting: {
		"好，那我们开始今天的会议",
		"首先汇报一下上周的进展",
		"用户反馈数据显示满意度提升了12%",
		"但是有一个问题需要重点关注",
		"就是新功能的使用率只有预期的60%",
		"我认为主要原因是入口太深了",
		"建议把入口提到首页显眼位置",
		"技术上这个改动大概需要3天",
		"如果改到首页需要考虑缓存策略",
		"建议先做个A/B测试看看数据",
		"好主意，那就先灰度10%用户",
		"一周后看数据再决定是否全量",
		"今天主要先把这个问题定下来",
		"好的那就这样，散会",
	},
	KindTutorial: {
		"大家好欢迎来到今天的课程",
		"很多人在这个地方容易踩坑",
		"首先我们来看一个概念",
		"它解决了传统方法的一个痛点",
		"我给大家看一段代码",
		"如果按照以前的方式写",
		"代码量会多出三倍不止",
		"用新方法之后同样的功能只需要这几行",
		"核心思路就是把复杂度下沉",
		"之前接手一个遗留项目启动时间要5秒多",
		"用这个方法优化后降到了800毫秒以内",
		"最后总结一下今天的要点",
		"第一是理解核心原理",
		"第二是掌握最佳实践",
		"第三是多动手练习",
	},
	KindInterview: {
		"欢迎来到今天的访谈",
		"今天请到的嘉宾在这个领域深耕超过十年",
		"首先请您做个自我介绍",
		"我05年入行一直做到现在",
		"您觉得最大的变化是什么",
		"我认为是思维方式的转变",
		"以前大家追求大而全，现在更强调小步快跑",
		"您有什么建议给传统企业",
		"先从一个小点切入，验证可行再扩大规模",
		"能分享一下具体的案例吗",
		"那是2018年的时候，我们投入了很多资源结果失败了",
		"后来改成小团队快速迭代的模式",
		"对年轻人有什么建议",
		"保持好奇心很重要",
		"感谢您的精彩分享",
	},
	KindVlog: {
		"大家好今天带大家看看我的一天",
		"现在是早上七点刚起床",
		"先去楼下买杯咖啡",
		"这家店的美式我喝了三年了",
		"今天计划去一个新发现的地方",
		"坐地铁大概半小时就到了",
		"哇到了确实很美",
		"朋友推荐附近一家店，据说要排队",
		"排了二十分钟终于进去了",
		"卖相确实很好但性价比一般",
		"人均150左右",
		"晚上准备回家做饭",
		"今天的vlog就到这里",
		"喜欢的话记得点赞关注",
	},
	KindGeneric: {
		"今天要和大家聊一个话题",
		"这个话题最近讨论度很高",
		"我想从几个角度来分析",
		"首先看一下背景",
		"当时的情况比较复杂，涉及到多方的利益",
		"有人认为应该这样做，理由是效率更高",
		"但也有人提出反对意见",
		"我个人的观点是需要具体问题具体分析",
		"举个例子来说明",
		"最后的解决方案是折中",
		"既照顾了效率也控制了风险",
		"当然具体执行还需要细化",
		"总之保持开放的态度很重要",
		"今天就聊到这里",
	},
}

// KindFor picks the content kind from keywords in title.
func KindFor(title string) Kind {
	t := strings.ToLower(title)
	for _, k := range kindKeywords {
		for _, w := range k.words {
			if strings.Contains(t, w) {
				return k.kind
			}
		}
	}
	return KindGeneric
}

// Transcript returns one utterance per LineDuration covering d, cycling
// through the lines for title's kind. Durations shorter than one line give
// an empty transcript.
func Transcript(title string, d time.Duration) types.Transcript {
	texts := lines[KindFor(title)]
	n := int(math.Floor(float64(d) / float64(LineDuration)))
	step := LineDuration.Milliseconds()
	utts := make([]types.Utterance, 0, max(n, 0))
	for i := 0; i < n; i++ {
		utts = append(utts, types.Utterance{
			Text:        texts[i%len(texts)],
			StartTimeMs: int64(i) * step,
			EndTimeMs:   int64(i+1) * step,
		})
	}
	return types.Transcript{Utterances: utts}
}
