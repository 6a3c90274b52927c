package story

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// builtinStories ship with the binary and back every offline run
var builtinStories = []Story{
	{
		ID:       "1",
		Chinese:  Chinese{Text: "今天天气真好，我想去公园散步。", Pinyin: "Jīntiān tiānqì zhēn hǎo, wǒ xiǎng qù gōngyuán sànbù."},
		English:  English{Text: "The weather is really nice today, I want to go for a walk in the park.", IPA: "ðə ˈwɛðər ɪz ˈrɪli naɪs təˈdeɪ, aɪ wɑnt tu goʊ fɔr ə wɔk ɪn ðə pɑrk."},
		Japanese: Japanese{Text: "今日は本当にいい天気ですね。公園を散歩したいです。", Hiragana: "きょうはほんとうにいいてんきですね。こうえんをさんぽしたいです。", Katakana: "キョウハホントウニイイテンキデスネ。コウエンヲサンポシタイデス。"},
		Category: "daily_life", Difficulty: Beginner,
	},
	{
		ID:       "2",
		Chinese:  Chinese{Text: "学习语言需要耐心和坚持。", Pinyin: "Xuéxí yǔyán xūyào nàixīn hé jiānchí."},
		English:  English{Text: "Learning languages requires patience and persistence.", IPA: "ˈlɜrnɪŋ ˈlæŋgwɪʤɪz rɪˈkwaɪərz ˈpeɪʃəns ænd pərˈsɪstəns."},
		Japanese: Japanese{Text: "言語を学ぶには忍耐力と継続が必要です。", Hiragana: "げんごをまなぶにはにんたいりょくとけいぞくがひつようです。", Katakana: "ゲンゴヲマナブニハニンタイリョクトケイゾクガヒツヨウデス。"},
		Category: "education", Difficulty: Intermediate,
	},
	{
		ID:       "3",
		Chinese:  Chinese{Text: "音乐能够治愈心灵，带来内心的平静。", Pinyin: "Yīnyuè nénggòu zhìyù xīnlíng, dàilái nèixīn de píngjìng."},
		English:  English{Text: "Music can heal the soul and bring inner peace.", IPA: "ˈmjuzɪk kæn hil ðə soʊl ænd brɪŋ ˈɪnər pis."},
		Japanese: Japanese{Text: "音楽は心を癒し、内なる平和をもたらします。", Hiragana: "おんがくはこころをいやし、うちなるへいわをもたらします。", Katakana: "オンガクハココロヲイヤシ、ウチナルヘイワヲモタラシマス。"},
		Category: "philosophy", Difficulty: Advanced,
	},
	{
		ID:       "4",
		Chinese:  Chinese{Text: "朋友之间的友谊是珍贵的财富。", Pinyin: "Péngyǒu zhījiān de yǒuyì shì zhēnguì de cáifù."},
		English:  English{Text: "Friendship between friends is a precious treasure.", IPA: "ˈfrɛndʃɪp bɪˈtwin frɛndz ɪz ə ˈprɛʃəs ˈtrɛʒər."},
		Japanese: Japanese{Text: "友達同士の友情は貴重な宝物です。", Hiragana: "ともだちどうしのゆうじょうはきちょうなたからものです。", Katakana: "トモダチドウシノユウジョウハキチョウナタカラモノデス。"},
		Category: "relationships", Difficulty: Beginner,
	},
	{
		ID:       "5",
		Chinese:  Chinese{Text: "努力工作的人终将获得成功。", Pinyin: "Nǔlì gōngzuò de rén zhōng jiāng huòdé chénggōng."},
		English:  English{Text: "People who work hard will eventually achieve success.", IPA: "ˈpipəl hu wɜrk hɑrd wɪl ɪˈvɛnʧuəli əˈʧiv səkˈsɛs."},
		Japanese: Japanese{Text: "一生懸命働く人はいずれ成功を手にします。", Hiragana: "いっしょうけんめいはたらくひとはいずれせいこうをてにします。", Katakana: "イッショウケンメイハタラクヒトハイズレセイコウヲテニシマス。"},
		Category: "motivation", Difficulty: Intermediate,
	},
}

// Catalog is a fixed set of stories
type Catalog struct {
	stories []Story
	intn    func(n int) int
}

// catalogFile is the YAML layout of a catalog file
type catalogFile struct {
	Stories []Story `yaml:"stories"`
}

// BuiltinCatalog returns the stories bundled with the binary
func BuiltinCatalog() *Catalog {
	return newCatalog(append([]Story(nil), builtinStories...))
}

func newCatalog(stories []Story) *Catalog {
	return &Catalog{stories: stories, intn: rand.IntN}
}

// LoadCatalog reads a YAML catalog file. Invalid entries are skipped with a
// warning; a file without any valid story is an error.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read story catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse story catalog %s: %w", path, err)
	}

	var stories []Story
	for i, s := range file.Stories {
		s.normalize()
		if err := s.Validate(); err != nil {
			log.Warn().Err(err).Int("index", i).Str("path", path).Msg("Skipping invalid story")
			continue
		}
		stories = append(stories, s)
	}
	if len(stories) == 0 {
		return nil, errors.New("story catalog has no valid stories")
	}

	log.Debug().Int("stories", len(stories)).Str("path", path).Msg("Loaded story catalog")
	return newCatalog(stories), nil
}

// Len returns the number of stories
func (c *Catalog) Len() int {
	return len(c.stories)
}

// Stories returns a copy of all stories
func (c *Catalog) Stories() []Story {
	return append([]Story(nil), c.stories...)
}

// Get returns the story with the given ID
func (c *Catalog) Get(id string) (Story, bool) {
	for _, s := range c.stories {
		if s.ID == id {
			return s, true
		}
	}
	return Story{}, false
}

// Random returns a uniformly chosen story
func (c *Catalog) Random() Story {
	return c.stories[c.intn(len(c.stories))]
}
