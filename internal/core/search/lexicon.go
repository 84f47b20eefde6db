package search

// 國家／地區清單，依序比對，第一個命中者為準
var countryList = []string{
	"south africa", "south korea", "north korea", "new zealand", "saudi arabia",
	"sri lanka", "united kingdom", "united states", "puerto rico", "costa rica",
	"dominican republic", "el salvador",
	"afghanistan", "algeria", "argentina", "armenia", "australia", "austria",
	"azerbaijan", "bangladesh", "belgium", "bolivia", "brazil", "bulgaria",
	"cambodia", "cameroon", "canada", "chile", "china", "colombia", "croatia",
	"cuba", "denmark", "ecuador", "egypt", "england", "eritrea", "ethiopia",
	"finland", "france", "georgia", "germany", "ghana", "greece", "guatemala",
	"haiti", "hungary", "india", "indonesia", "iran", "iraq", "ireland",
	"israel", "italy", "jamaica", "japan", "jordan", "kenya", "korea",
	"laos", "lebanon", "malaysia", "mexico", "mongolia", "morocco", "myanmar",
	"nepal", "netherlands", "nigeria", "norway", "pakistan", "palestine",
	"peru", "philippines", "poland", "portugal", "romania", "russia",
	"scotland", "senegal", "serbia", "singapore", "somalia", "spain", "sudan",
	"sweden", "switzerland", "syria", "taiwan", "tanzania", "thailand",
	"tunisia", "turkey", "uganda", "ukraine", "uruguay", "uzbekistan",
	"venezuela", "vietnam", "wales", "yemen",
	// 地區
	"caribbean", "mediterranean", "middle east", "scandinavia", "balkans",
	"west africa", "east africa", "north africa", "latin america",
	"southeast asia", "central asia", "sichuan", "punjab", "kerala",
	"bengal", "tuscany", "sicily", "provence", "andalusia", "oaxaca",
	"yucatan", "hokkaido", "okinawa",
}

// 常見食材清單，可同時命中多個
var ingredientList = []string{
	"chicken", "beef", "pork", "lamb", "mutton", "goat", "duck", "turkey",
	"fish", "salmon", "tuna", "cod", "shrimp", "prawn", "crab", "lobster",
	"squid", "octopus", "mussel", "clam", "egg", "tofu", "tempeh",
	"rice", "noodle", "pasta", "bread", "flour", "corn", "maize", "teff",
	"quinoa", "couscous", "bulgur", "oat", "barley", "lentil", "chickpea",
	"bean", "pea", "potato", "sweet potato", "cassava", "yam", "plantain",
	"tomato", "onion", "garlic", "ginger", "chili", "pepper", "carrot",
	"cabbage", "spinach", "kale", "eggplant", "aubergine", "zucchini",
	"mushroom", "okra", "pumpkin", "squash", "cucumber", "avocado",
	"cheese", "butter", "milk", "cream", "yogurt", "coconut", "peanut",
	"almond", "cashew", "sesame", "lemon", "lime", "mango", "banana",
	"apple", "pineapple", "cinnamon", "cumin", "coriander", "cilantro",
	"turmeric", "cardamom", "saffron", "basil", "mint", "parsley",
	"honey", "sugar", "chocolate", "vanilla", "soy sauce", "fish sauce",
	"vinegar", "olive oil", "berbere", "kimchi",
}

// 知名菜餚白名單，雙向子字串比對
var knownRecipeList = []string{
	"biryani", "injera", "pad thai", "pho", "ramen", "sushi", "tacos al pastor",
	"tacos", "mole", "pozole", "tamales", "ceviche", "paella", "gazpacho",
	"risotto", "carbonara", "lasagna", "margherita", "moussaka", "souvlaki",
	"falafel", "hummus", "shakshuka", "tagine", "couscous", "jollof rice",
	"bobotie", "doro wat", "bibimbap", "bulgogi", "kimchi jjigae", "dumplings",
	"kung pao chicken", "mapo tofu", "peking duck", "dim sum", "adobo",
	"sinigang", "rendang", "nasi goreng", "laksa", "satay", "butter chicken",
	"tikka masala", "palak paneer", "dal makhani", "masala dosa", "goulash",
	"pierogi", "borscht", "schnitzel", "ratatouille", "coq au vin",
	"bouillabaisse", "beef bourguignon", "fish and chips", "shepherds pie",
	"feijoada", "empanadas", "arepas", "gumbo", "jambalaya", "poutine",
	"baklava", "tiramisu", "pavlova", "kebab", "shawarma", "tom yum",
	"green curry", "massaman curry", "banh mi", "okonomiyaki", "tempura",
	"teriyaki", "katsu curry", "pastel de nata", "churros", "pupusas",
	"mansaf", "kabsa", "koshari", "ful medames", "egusi soup", "fufu",
	"ugali", "nyama choma", "pelmeni", "plov", "khachapuri", "dolma",
}

// 含糊描述常用的修飾詞
var hedgingWords = map[string]bool{
	"something": true, "like": true, "maybe": true, "kind": true,
	"sort": true, "similar": true, "some": true, "idea": true,
	"ideas": true, "anything": true, "perhaps": true, "probably": true,
	"whatever": true, "stuff": true, "thing": true, "dish": true,
	"with": true, "using": true, "any": true, "type": true,
}

// 食材同義詞表，多對一收斂到單一標準名稱
var ingredientSynonyms = map[string]string{
	"garbanzo beans":     "chickpeas",
	"garbanzo bean":      "chickpeas",
	"garbanzos":          "chickpeas",
	"garbanzo":           "chickpeas",
	"chickpea":           "chickpeas",
	"chile":              "chili",
	"chilli":             "chili",
	"chilies":            "chili",
	"chiles":             "chili",
	"chillies":           "chili",
	"coriander leaves":   "cilantro",
	"fresh coriander":    "cilantro",
	"aubergine":          "eggplant",
	"aubergines":         "eggplant",
	"eggplants":          "eggplant",
	"courgette":          "zucchini",
	"courgettes":         "zucchini",
	"scallion":           "green onion",
	"scallions":          "green onion",
	"spring onion":       "green onion",
	"spring onions":      "green onion",
	"green onions":       "green onion",
	"bell peppers":       "bell pepper",
	"capsicum":           "bell pepper",
	"prawns":             "shrimp",
	"prawn":              "shrimp",
	"shrimps":            "shrimp",
	"minced beef":        "ground beef",
	"beef mince":         "ground beef",
	"minced pork":        "ground pork",
	"pork mince":         "ground pork",
	"corn starch":        "cornstarch",
	"cornflour":          "cornstarch",
	"corn flour":         "cornstarch",
	"all purpose flour":  "flour",
	"all-purpose flour":  "flour",
	"plain flour":        "flour",
	"caster sugar":       "sugar",
	"granulated sugar":   "sugar",
	"white sugar":        "sugar",
	"double cream":       "heavy cream",
	"whipping cream":     "heavy cream",
	"natural yoghurt":    "yogurt",
	"yoghurt":            "yogurt",
	"plain yogurt":       "yogurt",
	"tomatoes":           "tomato",
	"onions":             "onion",
	"potatoes":           "potato",
	"carrots":            "carrot",
	"eggs":               "egg",
	"garlic cloves":      "garlic",
	"cloves garlic":      "garlic",
	"clove garlic":       "garlic",
	"garlic clove":       "garlic",
	"soya sauce":         "soy sauce",
	"shoyu":              "soy sauce",
	"lentils":            "lentil",
	"mushrooms":          "mushroom",
	"limes":              "lime",
	"lemons":             "lemon",

	"extra virgin olive oil": "olive oil",
}
